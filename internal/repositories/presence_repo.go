package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fieldledger/fieldledger/internal/models"
)

const (
	presenceKeyPrefix = "presence:"
	presenceTTL       = 10 * time.Minute // presence expires without a sync pass
)

// RedisPresenceRepository tracks which devices in a workspace synced
// recently. Entries carry a TTL so an offline device simply disappears.
type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// SetPresence records a device's sync activity with automatic TTL. The sync
// handlers call this on every push and pull.
func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	presence.LastSeen = time.Now()

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	key := presenceKey(presence.DeviceID)
	err = r.client.Set(ctx, key, data, presenceTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	return nil
}

func (r *RedisPresenceRepository) GetPresence(ctx context.Context, deviceID uuid.UUID) (*models.Presence, error) {
	key := presenceKey(deviceID)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// No entry = no recent sync pass.
		return &models.Presence{
			DeviceID: deviceID,
			Status:   string(models.StatusOffline),
			LastSeen: time.Time{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var presence models.Presence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}

	return &presence, nil
}

// GetBulkPresence retrieves presence for multiple devices in a single round
// trip. Used for the workspace device list.
func (r *RedisPresenceRepository) GetBulkPresence(ctx context.Context, deviceIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	if len(deviceIDs) == 0 {
		return make(map[uuid.UUID]models.Presence), nil
	}

	keys := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		keys[i] = presenceKey(id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	presenceMap := make(map[uuid.UUID]models.Presence)
	for i, result := range results {
		deviceID := deviceIDs[i]

		offline := models.Presence{
			DeviceID: deviceID,
			Status:   string(models.StatusOffline),
			LastSeen: time.Time{},
		}

		if result == nil {
			presenceMap[deviceID] = offline
			continue
		}

		data, ok := result.(string)
		if !ok {
			presenceMap[deviceID] = offline
			continue
		}

		var presence models.Presence
		if err := json.Unmarshal([]byte(data), &presence); err != nil {
			presenceMap[deviceID] = offline
			continue
		}

		presenceMap[deviceID] = presence
	}

	return presenceMap, nil
}

func presenceKey(deviceID uuid.UUID) string {
	return presenceKeyPrefix + deviceID.String()
}
