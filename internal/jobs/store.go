// Package jobs keeps background job progress in Redis so any instance can report it.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/fee-ledger/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// Store persists job progress
type Store interface {
	Create(ctx context.Context, kind string, total int) (*domain.Job, error)
	Save(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Create(ctx context.Context, kind string, total int) (*domain.Job, error) {
	now := s.now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    domain.JobStatusQueued,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Save overwrites the job and refreshes its expiry
func (s *RedisStore) Save(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	if err := s.client.Set(ctx, jobKey(job.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func jobKey(id string) string {
	return "jobs:" + id
}
