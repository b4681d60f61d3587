package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldledger/fieldledger/internal/models"
	"github.com/fieldledger/fieldledger/internal/syncid"
)

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestPullBootstrapReturnsActiveRowsAsCreates(t *testing.T) {
	repo := newFakeEntityRepo()
	now := time.Now().UTC()
	repo.active[models.KindCustomer] = []models.EntityRow{
		&models.Customer{ID: "c1", Name: "Acme", UpdatedAt: now},
	}
	repo.active[models.KindJob] = []models.EntityRow{
		&models.Job{ID: "j1", CustomerID: "c1", Title: "Install", UpdatedAt: now},
	}
	svc := NewPullService(repo, &fakeSyncLog{}, quietLogger())

	resp, err := svc.Pull(context.Background(), uuid.New(), nil)

	require.NoError(t, err)
	require.Len(t, resp.Changes, 2)
	for _, change := range resp.Changes {
		assert.Equal(t, models.OpCreate, change.Op, "bootstrap synthesizes creates only")
		assert.Nil(t, change.Row.Tombstone(), "tombstones are never bootstrapped")
	}
	// Parents come first because kinds are scanned in dependency order.
	assert.Equal(t, models.KindCustomer, resp.Changes[0].Kind)
	assert.Equal(t, models.KindJob, resp.Changes[1].Kind)
	assert.False(t, resp.ServerTime.IsZero())
}

func TestPullBootstrapEmptyWorkspace(t *testing.T) {
	svc := NewPullService(newFakeEntityRepo(), &fakeSyncLog{}, quietLogger())

	resp, err := svc.Pull(context.Background(), uuid.New(), nil)

	require.NoError(t, err)
	assert.Empty(t, resp.Changes)
	assert.False(t, resp.ServerTime.IsZero(), "even an empty bootstrap commits a watermark")
}

func TestPullIncrementalReplaysLogInOrder(t *testing.T) {
	now := time.Now().UTC()
	custID := uuid.New().String()
	log := &fakeSyncLog{records: []*models.SyncEventRecord{
		{
			ID:         uuid.New(),
			EntityKind: models.KindCustomer,
			Operation:  models.OpCreate,
			EntityID:   custID,
			RowData:    mustMarshal(t, &models.Customer{ID: custID, Name: "Acme", UpdatedAt: now}),
			CreatedAt:  now,
		},
		{
			ID:         uuid.New(),
			EntityKind: models.KindCustomer,
			Operation:  models.OpUpdate,
			EntityID:   custID,
			RowData:    mustMarshal(t, &models.Customer{ID: custID, Name: "Acme Plumbing", UpdatedAt: now.Add(time.Second)}),
			CreatedAt:  now.Add(time.Second),
		},
	}}
	svc := NewPullService(newFakeEntityRepo(), log, quietLogger())
	since := now.Add(-time.Minute)

	resp, err := svc.Pull(context.Background(), uuid.New(), &since)

	require.NoError(t, err)
	require.Len(t, resp.Changes, 2)
	assert.Equal(t, models.OpCreate, resp.Changes[0].Op)
	assert.Equal(t, models.OpUpdate, resp.Changes[1].Op)
	assert.Equal(t, "Acme Plumbing", resp.Changes[1].Row.(*models.Customer).Name)
}

func TestPullIncrementalNormalizesLoggedRows(t *testing.T) {
	// The log preserves the device's local ids; pulled rows must carry the
	// canonical ids so they match what the apply path wrote.
	now := time.Now().UTC()
	log := &fakeSyncLog{records: []*models.SyncEventRecord{{
		ID:         uuid.New(),
		EntityKind: models.KindJob,
		Operation:  models.OpCreate,
		EntityID:   syncid.Normalize("job-1"),
		RowData:    mustMarshal(t, &models.Job{ID: "job-1", CustomerID: "cust-1", Title: "Install", UpdatedAt: now}),
		CreatedAt:  now,
	}}}
	svc := NewPullService(newFakeEntityRepo(), log, quietLogger())
	since := now.Add(-time.Minute)

	resp, err := svc.Pull(context.Background(), uuid.New(), &since)

	require.NoError(t, err)
	require.Len(t, resp.Changes, 1)
	job := resp.Changes[0].Row.(*models.Job)
	assert.Equal(t, syncid.Normalize("job-1"), job.ID)
	assert.Equal(t, syncid.Normalize("cust-1"), job.CustomerID)
}

func TestPullIncrementalCarriesTombstones(t *testing.T) {
	now := time.Now().UTC()
	custID := uuid.New().String()
	log := &fakeSyncLog{records: []*models.SyncEventRecord{{
		ID:         uuid.New(),
		EntityKind: models.KindCustomer,
		Operation:  models.OpDelete,
		EntityID:   custID,
		RowData:    mustMarshal(t, &models.Customer{ID: custID, Name: "Acme", UpdatedAt: now, DeletedAt: &now}),
		CreatedAt:  now,
	}}}
	svc := NewPullService(newFakeEntityRepo(), log, quietLogger())
	since := now.Add(-time.Minute)

	resp, err := svc.Pull(context.Background(), uuid.New(), &since)

	require.NoError(t, err)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, models.OpDelete, resp.Changes[0].Op)
	require.NotNil(t, resp.Changes[0].DeletedAt)
}

func TestPullIncrementalSkipsUndecodableRecords(t *testing.T) {
	now := time.Now().UTC()
	custID := uuid.New().String()
	log := &fakeSyncLog{records: []*models.SyncEventRecord{
		{
			ID:         uuid.New(),
			EntityKind: models.KindCustomer,
			Operation:  models.OpCreate,
			EntityID:   "broken",
			RowData:    []byte("{not json"),
			CreatedAt:  now,
		},
		{
			ID:         uuid.New(),
			EntityKind: models.KindCustomer,
			Operation:  models.OpCreate,
			EntityID:   custID,
			RowData:    mustMarshal(t, &models.Customer{ID: custID, Name: "Acme", UpdatedAt: now}),
			CreatedAt:  now,
		},
	}}
	svc := NewPullService(newFakeEntityRepo(), log, quietLogger())
	since := now.Add(-time.Minute)

	resp, err := svc.Pull(context.Background(), uuid.New(), &since)

	require.NoError(t, err, "one bad record must not poison the pull")
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, custID, resp.Changes[0].Row.EntityID())
}
