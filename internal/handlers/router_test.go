package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldledger/fieldledger/internal/models"
	"github.com/fieldledger/fieldledger/internal/repositories"
	"github.com/fieldledger/fieldledger/internal/services"
)

type fakePusher struct {
	gotWorkspace uuid.UUID
	gotDevice    uuid.UUID
	gotChanges   []models.ChangeEvent
	resp         *models.PushResponse
	err          error
}

func (f *fakePusher) Push(ctx context.Context, workspaceID, deviceID uuid.UUID, changes []models.ChangeEvent) (*models.PushResponse, error) {
	f.gotWorkspace = workspaceID
	f.gotDevice = deviceID
	f.gotChanges = changes
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &models.PushResponse{Success: true}, nil
}

type fakePuller struct {
	gotSince *time.Time
	called   bool
	resp     *models.PullResponse
}

func (f *fakePuller) Pull(ctx context.Context, workspaceID uuid.UUID, since *time.Time) (*models.PullResponse, error) {
	f.called = true
	f.gotSince = since
	if f.resp != nil {
		return f.resp, nil
	}
	return &models.PullResponse{ServerTime: time.Now().UTC()}, nil
}

type fakeWorkspaceRepo struct {
	memberships map[string]*models.Membership // workspaceID|userID
}

func membershipKey(workspaceID, userID uuid.UUID) string {
	return workspaceID.String() + "|" + userID.String()
}

func (f *fakeWorkspaceRepo) Create(ctx context.Context, workspace *models.Workspace) error { return nil }
func (f *fakeWorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	return nil, repositories.ErrNotFound
}
func (f *fakeWorkspaceRepo) AddMember(ctx context.Context, membership *models.Membership) error {
	f.memberships[membershipKey(membership.WorkspaceID, membership.UserID)] = membership
	return nil
}
func (f *fakeWorkspaceRepo) GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (*models.Membership, error) {
	m, ok := f.memberships[membershipKey(workspaceID, userID)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return m, nil
}
func (f *fakeWorkspaceRepo) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Membership, error) {
	return nil, nil
}

type fakeDeviceRepo struct {
	devices map[uuid.UUID]*models.Device
	revoked []uuid.UUID
}

func (f *fakeDeviceRepo) Create(ctx context.Context, device *models.Device) error {
	device.ID = uuid.New()
	device.CreatedAt = time.Now().UTC()
	f.devices[device.ID] = device
	return nil
}
func (f *fakeDeviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	device, ok := f.devices[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return device, nil
}
func (f *fakeDeviceRepo) ListByWorkspaceID(ctx context.Context, workspaceID uuid.UUID) ([]*models.Device, error) {
	var out []*models.Device
	for _, device := range f.devices {
		if device.WorkspaceID == workspaceID {
			out = append(out, device)
		}
	}
	return out, nil
}
func (f *fakeDeviceRepo) TouchLastSeen(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeDeviceRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	f.revoked = append(f.revoked, id)
	return nil
}

type fakePresenceRepo struct {
	set []*models.Presence
}

func (f *fakePresenceRepo) SetPresence(ctx context.Context, presence *models.Presence) error {
	f.set = append(f.set, presence)
	return nil
}
func (f *fakePresenceRepo) GetPresence(ctx context.Context, deviceID uuid.UUID) (*models.Presence, error) {
	return nil, repositories.ErrNotFound
}
func (f *fakePresenceRepo) GetBulkPresence(ctx context.Context, deviceIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	return map[uuid.UUID]models.Presence{}, nil
}

type testEnv struct {
	server    *httptest.Server
	tokens    *services.TokenService
	pusher    *fakePusher
	puller    *fakePuller
	devices   *fakeDeviceRepo
	presence  *fakePresenceRepo
	userID    uuid.UUID
	workspace uuid.UUID
	deviceID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	env := &testEnv{
		tokens:    services.NewTokenService("test-secret"),
		pusher:    &fakePusher{},
		puller:    &fakePuller{},
		devices:   &fakeDeviceRepo{devices: make(map[uuid.UUID]*models.Device)},
		presence:  &fakePresenceRepo{},
		userID:    uuid.New(),
		workspace: uuid.New(),
		deviceID:  uuid.New(),
	}
	workspaces := &fakeWorkspaceRepo{memberships: make(map[string]*models.Membership)}
	workspaces.AddMember(context.Background(), &models.Membership{
		WorkspaceID: env.workspace,
		UserID:      env.userID,
		Role:        models.RoleOwner,
	})

	router := NewRouter(Deps{
		Pusher:     env.pusher,
		Puller:     env.puller,
		Tokens:     env.tokens,
		Workspaces: workspaces,
		Devices:    env.devices,
		Presence:   env.presence,
		Logger:     logger,
	})
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, err := e.tokens.Issue(e.userID, e.workspace, e.deviceID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/v1/sync/pull", "", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGarbageTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/v1/sync/pull", "not-a-token", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNonMemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	// Valid signature, but the user was never added to the workspace.
	stranger, err := env.tokens.Issue(uuid.New(), env.workspace, env.deviceID, time.Hour)
	require.NoError(t, err)

	resp := env.request(t, http.MethodGet, "/v1/sync/pull", stranger, nil)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, env.puller.called)
}

func TestPushRoutesToService(t *testing.T) {
	env := newTestEnv(t)
	custID := uuid.New().String()
	body := models.PushRequest{
		DeviceID: env.deviceID.String(),
		Changes: []models.ChangeEvent{{
			ID:   "e1",
			Kind: models.KindCustomer,
			Op:   models.OpCreate,
			Row:  &models.Customer{ID: custID, Name: "Acme"},
		}},
	}

	resp := env.request(t, http.MethodPost, "/v1/sync/push", env.token(t), body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, env.workspace, env.pusher.gotWorkspace)
	assert.Equal(t, env.deviceID, env.pusher.gotDevice)
	require.Len(t, env.pusher.gotChanges, 1)
	assert.Equal(t, custID, env.pusher.gotChanges[0].Row.EntityID())

	var decoded models.PushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.True(t, decoded.Success)

	require.NotEmpty(t, env.presence.set, "a sync call records presence")
	assert.Equal(t, env.deviceID, env.presence.set[0].DeviceID)
}

func TestPushDeviceMismatchRejected(t *testing.T) {
	env := newTestEnv(t)
	body := models.PushRequest{
		DeviceID: uuid.New().String(), // not the device the token was issued for
		Changes: []models.ChangeEvent{{
			ID:   "e1",
			Kind: models.KindCustomer,
			Op:   models.OpCreate,
			Row:  &models.Customer{ID: uuid.New().String(), Name: "Acme"},
		}},
	}

	resp := env.request(t, http.MethodPost, "/v1/sync/push", env.token(t), body)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, env.pusher.gotChanges, "nothing reaches the service on a mismatch")
}

func TestPushMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/sync/push", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token(t))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPullWithoutSinceBootstraps(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/v1/sync/pull", env.token(t), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.puller.called)
	assert.Nil(t, env.puller.gotSince)
}

func TestPullWithSince(t *testing.T) {
	env := newTestEnv(t)
	since := time.Now().UTC().Truncate(time.Second)

	resp := env.request(t, http.MethodGet, "/v1/sync/pull?since="+since.Format(time.RFC3339Nano), env.token(t), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, env.puller.gotSince)
	assert.True(t, env.puller.gotSince.Equal(since))
}

func TestPullMalformedSince(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/v1/sync/pull?since=yesterday", env.token(t), nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.puller.called)
}

func TestEnrollDevice(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/devices", env.token(t), enrollDeviceRequest{
		Name:       "Field tablet",
		DeviceType: "tablet",
		Secret:     "a-long-enough-device-secret",
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Device
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, env.workspace, created.WorkspaceID)
	assert.Equal(t, "Field tablet", created.Name)
	require.Len(t, env.devices.devices, 1)
}

func TestEnrollDeviceRejectsWeakSecret(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/v1/devices", env.token(t), enrollDeviceRequest{
		Name:   "Field tablet",
		Secret: "short",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.devices.devices)
}

func TestListDevices(t *testing.T) {
	env := newTestEnv(t)
	env.devices.Create(context.Background(), &models.Device{WorkspaceID: env.workspace, Name: "Tablet"})

	resp := env.request(t, http.MethodGet, "/v1/devices", env.token(t), nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views []deviceView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 1)
	assert.Equal(t, string(models.StatusOffline), views[0].Presence, "no recorded presence reads as offline")
}

func TestRevokeDevice(t *testing.T) {
	env := newTestEnv(t)
	device := &models.Device{WorkspaceID: env.workspace, Name: "Tablet"}
	env.devices.Create(context.Background(), device)

	resp := env.request(t, http.MethodPost, "/v1/devices/"+device.ID.String()+"/revoke", env.token(t), nil)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Len(t, env.devices.revoked, 1)
	assert.Equal(t, device.ID, env.devices.revoked[0])
}

func TestRevokeDeviceOutsideWorkspaceHidden(t *testing.T) {
	env := newTestEnv(t)
	foreign := &models.Device{WorkspaceID: uuid.New(), Name: "Someone else's"}
	env.devices.Create(context.Background(), foreign)

	resp := env.request(t, http.MethodPost, "/v1/devices/"+foreign.ID.String()+"/revoke", env.token(t), nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, env.devices.revoked)
}
