package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeviceSecretRoundTrip(t *testing.T) {
	secret := "a-long-enough-device-secret"

	hashed, err := HashDeviceSecret(secret)
	require.NoError(t, err)
	assert.NotEqual(t, secret, hashed)

	assert.True(t, CheckDeviceSecret(hashed, secret))
	assert.False(t, CheckDeviceSecret(hashed, "wrong-secret-entirely"))
}

func TestHashDeviceSecretRejectsShortSecret(t *testing.T) {
	_, err := HashDeviceSecret("too-short")
	assert.Error(t, err)
}
