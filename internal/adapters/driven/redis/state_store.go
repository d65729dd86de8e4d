package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StateStore = (*StateStore)(nil)

const (
	schedulesPrefix = "hydroqc:schedules:"
	snapshotPrefix  = "hydroqc:snapshot:"
)

// StateStore keeps schedules and the latest snapshot as JSON strings.
// Keys never expire; each save overwrites the previous value.
type StateStore struct {
	client *redis.Client
}

// NewStateStore creates a Redis-backed StateStore.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// SaveSchedules stores the scheduling state for a contract.
func (s *StateStore) SaveSchedules(ctx context.Context, contractID string, schedules *domain.Schedules) error {
	if schedules == nil {
		return fmt.Errorf("%w: nil schedules", domain.ErrInvalidInput)
	}
	return s.put(ctx, schedulesPrefix+contractID, schedules)
}

// GetSchedules retrieves the scheduling state for a contract.
func (s *StateStore) GetSchedules(ctx context.Context, contractID string) (*domain.Schedules, error) {
	var schedules domain.Schedules
	if err := s.get(ctx, schedulesPrefix+contractID, &schedules); err != nil {
		return nil, err
	}
	return &schedules, nil
}

// SaveSnapshot stores the latest snapshot under its contract ID.
// An older sequence never overwrites a newer one; it returns
// domain.ErrStaleSnapshot instead.
func (s *StateStore) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil || snapshot.Contract.ID == "" {
		return fmt.Errorf("%w: snapshot without contract", domain.ErrInvalidInput)
	}
	key := snapshotPrefix + snapshot.Contract.ID

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	written, err := saveIfNewer.Run(ctx, s.client, []string{key}, data, snapshot.Sequence).Int()
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("%w: sequence %d for %s", domain.ErrStaleSnapshot, snapshot.Sequence, snapshot.Contract.ID)
	}
	return nil
}

// saveIfNewer writes ARGV[1] unless the stored snapshot has a higher sequence.
var saveIfNewer = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local ok, decoded = pcall(cjson.decode, current)
	if ok and decoded["sequence"] and tonumber(decoded["sequence"]) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

// GetSnapshot retrieves the latest snapshot for a contract.
func (s *StateStore) GetSnapshot(ctx context.Context, contractID string) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	if err := s.get(ctx, snapshotPrefix+contractID, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Ping checks the Redis connection.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *StateStore) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) get(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
