package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"document-access-service/internal/database/redis"
	"document-access-service/internal/models"

	redis_v9 "github.com/redis/go-redis/v9"
)

const authorityCacheTTL = 6 * time.Hour

type RedisRepo struct {
	client *redis_v9.Client
}

func NewRedisRepo() *RedisRepo {
	return &RedisRepo{
		client: redis.Redis_Client,
	}
}

func authorityKey(documentID string) string {
	return "document-authority:" + documentID
}

func (r *RedisRepo) SaveAuthorityCached(ctx context.Context, documentID string, authority models.Authority) error {
	val, err := json.Marshal(authority)
	if err != nil {
		return fmt.Errorf("error saving authority to cache: %s", err)
	}
	err = r.client.Set(ctx, authorityKey(documentID), val, authorityCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("error saving authority to cache: %s", err)
	}
	return nil
}

func (r *RedisRepo) GetAuthorityCached(ctx context.Context, documentID string) (*models.Authority, error) {
	raw, err := r.client.Get(ctx, authorityKey(documentID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("error get authority in cache: %s", err)
	}

	var authority models.Authority
	if err := json.Unmarshal(raw, &authority); err != nil {
		return nil, err
	}
	return &authority, nil
}

// InvalidateAuthority drops the cached resolution. Called on manager
// assignment, the only event that changes a document's origin authority.
func (r *RedisRepo) InvalidateAuthority(ctx context.Context, documentID string) error {
	return r.client.Del(ctx, authorityKey(documentID)).Err()
}
