// Package syncclient drains the local outbox to the backend and merges new
// backend changes into the local store.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/models"
	"github.com/fieldledger/fieldledger/internal/store"
)

var (
	// ErrNotAuthenticated short-circuits a sync pass without a bound session.
	// It is a no-op signal, never surfaced as a sync error.
	ErrNotAuthenticated = errors.New("no authenticated user with a bound workspace")

	// ErrSyncInFlight is returned when a pass is already running. Triggers
	// that hit it are simply dropped; the running pass covers them.
	ErrSyncInFlight = errors.New("sync pass already in flight")
)

// Backend is the server push/pull surface. HTTPBackend talks to the real
// API; tests substitute an in-memory implementation.
type Backend interface {
	Push(ctx context.Context, deviceID string, changes []models.ChangeEvent) (*models.PushResponse, error)
	Pull(ctx context.Context, since *time.Time) (*models.PullResponse, error)
}

// Client owns one device's sync state. It is the single writer of the outbox
// tail and the watermark; everything else only reads them.
type Client struct {
	store    *store.Store
	backend  Backend
	logger   *logrus.Logger
	deviceID string

	syncing atomic.Bool

	mu          sync.Mutex
	userID      string
	workspaceID string
	syncErr     string
}

func NewClient(st *store.Store, backend Backend, deviceID string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		store:    st,
		backend:  backend,
		logger:   logger,
		deviceID: deviceID,
	}
}

// SetSession binds the authenticated user and workspace. Identity comes from
// outside; the engine only needs the ids.
func (c *Client) SetSession(userID, workspaceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.workspaceID = workspaceID
}

func (c *Client) ClearSession() {
	c.SetSession("", "")
}

// Ready reports whether a sync pass is allowed to run.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID != "" && c.workspaceID != ""
}

// IsSyncing reports whether a pass is in flight.
func (c *Client) IsSyncing() bool {
	return c.syncing.Load()
}

// SyncError returns the failure of the last pass, or "" after a clean pass.
func (c *Client) SyncError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncErr
}

// PendingCount reports the current user's outbox length.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	user := c.userID
	c.mu.Unlock()
	if user == "" {
		return 0
	}
	return c.store.PendingCount(user)
}

// Watermark returns the current user's last merged server time.
func (c *Client) Watermark() (time.Time, bool) {
	c.mu.Lock()
	user := c.userID
	c.mu.Unlock()
	if user == "" {
		return time.Time{}, false
	}
	return c.store.Watermark(user)
}

// SyncNow runs one push+pull pass. Concurrent calls do not stack: while a
// pass is in flight further calls return ErrSyncInFlight. There is no
// cancellation beyond ctx; a pass runs to completion or failure.
func (c *Client) SyncNow(ctx context.Context) error {
	c.mu.Lock()
	user := c.userID
	c.mu.Unlock()
	if user == "" {
		return ErrNotAuthenticated
	}

	if !c.syncing.CompareAndSwap(false, true) {
		return ErrSyncInFlight
	}
	defer c.syncing.Store(false)

	if err := c.push(ctx, user); err != nil {
		c.setSyncError(err)
		return err
	}
	if err := c.pull(ctx, user); err != nil {
		c.setSyncError(err)
		return err
	}
	c.setSyncError(nil)
	return nil
}

// ForceFullSync clears the watermark so the next pull bootstraps, then runs
// a pass immediately.
func (c *Client) ForceFullSync(ctx context.Context) error {
	c.mu.Lock()
	user := c.userID
	c.mu.Unlock()
	if user == "" {
		return ErrNotAuthenticated
	}
	c.store.ClearWatermark(user)
	return c.SyncNow(ctx)
}

// push sends the whole outbox as one batch. On success the pushed prefix is
// cleared and skipped records are re-queued; on any failure the outbox is
// left untouched for the next pass (at-least-once delivery).
func (c *Client) push(ctx context.Context, userID string) error {
	batch := c.store.Outbox(userID)
	if len(batch) == 0 {
		return nil
	}

	resp, err := c.backend.Push(ctx, c.deviceID, batch)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("push rejected: %s", firstFatalReason(resp.Outcomes))
	}

	skipped := make(map[string]bool)
	for _, outcome := range resp.Outcomes {
		if outcome.Status == models.OutcomeSkipped {
			skipped[outcome.EventID] = true
		}
	}
	var requeue []models.ChangeEvent
	for _, event := range batch {
		if skipped[event.ID] {
			requeue = append(requeue, event)
		}
	}
	c.store.ClearPushed(userID, len(batch), requeue)

	c.logger.WithFields(logrus.Fields{
		"pushed":   len(batch),
		"requeued": len(requeue),
	}).Info("outbox drained")
	return nil
}

// pull fetches changes since the watermark (or bootstraps without one),
// merges them in server order, and only then commits the new watermark.
func (c *Client) pull(ctx context.Context, userID string) error {
	var since *time.Time
	if wm, ok := c.store.Watermark(userID); ok {
		since = &wm
	}

	resp, err := c.backend.Pull(ctx, since)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}

	c.store.ApplyRemote(resp.Changes)
	c.store.SetWatermark(userID, resp.ServerTime)

	c.logger.WithFields(logrus.Fields{
		"merged":    len(resp.Changes),
		"bootstrap": since == nil,
	}).Info("pull merged")
	return nil
}

func (c *Client) setSyncError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.syncErr = ""
		return
	}
	c.syncErr = err.Error()
}

func firstFatalReason(outcomes []models.ApplyOutcome) string {
	for _, o := range outcomes {
		if o.Status == models.OutcomeFatal {
			return o.Reason
		}
	}
	return "unknown apply failure"
}
