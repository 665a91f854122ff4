package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bannerforge/api/internal/model"
)

const (
	templateKeyPrefix = "template:"
	templateIndexKey  = "templates"
	jobKeyPrefix      = "job:"
	jobTTL            = 24 * time.Hour
)

// RedisTemplateStore keeps templates as JSON blobs plus a set index for
// listing.
type RedisTemplateStore struct {
	redis *redis.Client
}

func NewRedisTemplateStore(redisClient *redis.Client) *RedisTemplateStore {
	return &RedisTemplateStore{redis: redisClient}
}

func (s *RedisTemplateStore) Save(ctx context.Context, t *model.Template) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}
	if err := s.redis.Set(ctx, templateKeyPrefix+t.ID, data, 0).Err(); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, templateIndexKey, t.ID).Err()
}

func (s *RedisTemplateStore) Get(ctx context.Context, id string) (*model.Template, error) {
	data, err := s.redis.Get(ctx, templateKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	var t model.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}
	return &t, nil
}

func (s *RedisTemplateStore) List(ctx context.Context) ([]*model.Template, error) {
	ids, err := s.redis.SMembers(ctx, templateIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Template, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if err != nil {
			if err == ErrTemplateNotFound {
				// Index entry outlived its record; heal the index.
				s.redis.SRem(ctx, templateIndexKey, id)
				continue
			}
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisTemplateStore) Delete(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, templateKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTemplateNotFound
	}
	return s.redis.SRem(ctx, templateIndexKey, id).Err()
}

// RedisJobStore keeps job records as JSON blobs with a retention TTL.
type RedisJobStore struct {
	redis *redis.Client
}

func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: redisClient}
}

func (s *RedisJobStore) Save(ctx context.Context, j *model.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.redis.Set(ctx, jobKeyPrefix+j.ID, data, jobTTL).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	var j model.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &j, nil
}
