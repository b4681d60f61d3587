package syncid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldledger/fieldledger/internal/models"
)

func TestNormalize_UUIDPassthrough(t *testing.T) {
	id := "2b0c8f4e-9a1d-4c3b-8e5f-6a7b8c9d0e1f"
	assert.Equal(t, id, Normalize(id))
}

func TestNormalize_EmptyMeansNoReference(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
}

func TestNormalize_Deterministic(t *testing.T) {
	first := Normalize("cust-1")
	second := Normalize("cust-1")
	assert.Equal(t, first, second, "same input must always normalize identically")
}

func TestNormalize_ProducesValidUUIDGrammar(t *testing.T) {
	for _, input := range []string{"cust-1", "job_42", "x", "some very long local identifier with spaces"} {
		normalized := Normalize(input)
		assert.True(t, IsUUID(normalized), "Normalize(%q) = %q should match UUID grammar", input, normalized)
	}
}

func TestNormalize_DistinctInputsDiffer(t *testing.T) {
	assert.NotEqual(t, Normalize("cust-1"), Normalize("cust-2"))
}

func TestNormalizeRow_LeavesLocalRowUntouched(t *testing.T) {
	job := &models.Job{ID: "job-1", CustomerID: "cust-1"}

	normalized := NormalizeRow(job).(*models.Job)

	require.NotSame(t, job, normalized)
	assert.Equal(t, "job-1", job.ID, "local id must never be mutated")
	assert.True(t, IsUUID(normalized.ID))
	assert.True(t, IsUUID(normalized.CustomerID))
}

func TestNormalizeRow_ReferenceConsistency(t *testing.T) {
	// A job's customer reference and the customer's own id must land on the
	// same canonical UUID, or the foreign key breaks.
	customer := &models.Customer{ID: "cust-1"}
	job := &models.Job{ID: "job-1", CustomerID: "cust-1"}

	normalizedCustomer := NormalizeRow(customer).(*models.Customer)
	normalizedJob := NormalizeRow(job).(*models.Job)

	assert.Equal(t, normalizedCustomer.ID, normalizedJob.CustomerID)
}

func TestNormalizeRow_EmptyReferencesStayEmpty(t *testing.T) {
	invoice := &models.Invoice{ID: "inv-1", CustomerID: "cust-1"}

	normalized := NormalizeRow(invoice).(*models.Invoice)

	assert.Empty(t, normalized.JobID)
	assert.Empty(t, normalized.QuoteID)
}
