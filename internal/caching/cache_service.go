package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"pipecrm/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type CacheService interface {
	// Lead caching
	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (*models.Lead, error)
	SetLead(ctx context.Context, tenantID uuid.UUID, lead *models.Lead, ttl time.Duration) error
	DeleteLead(ctx context.Context, tenantID, leadID uuid.UUID) error

	// Pipeline report caching
	GetPipelineSummary(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error)
	SetPipelineSummary(ctx context.Context, tenantID uuid.UUID, summaries []*models.StageSummary, ttl time.Duration) error
	DeletePipelineSummary(ctx context.Context, tenantID uuid.UUID) error

	// Cache invalidation
	InvalidateTenantCache(ctx context.Context, tenantID uuid.UUID) error

	// Generic string operations
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func leadKey(tenantID, leadID uuid.UUID) string {
	return fmt.Sprintf("pipecrm:lead:%s:%s", tenantID.String(), leadID.String())
}

func pipelineKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("pipecrm:pipeline:%s", tenantID.String())
}

func (r *redisCacheService) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (*models.Lead, error) {
	data, err := r.client.Get(ctx, leadKey(tenantID, leadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lead := &models.Lead{}
	if err := json.Unmarshal(data, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (r *redisCacheService) SetLead(ctx context.Context, tenantID uuid.UUID, lead *models.Lead, ttl time.Duration) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, leadKey(tenantID, lead.ID), data, ttl).Err()
}

func (r *redisCacheService) DeleteLead(ctx context.Context, tenantID, leadID uuid.UUID) error {
	return r.client.Del(ctx, leadKey(tenantID, leadID)).Err()
}

func (r *redisCacheService) GetPipelineSummary(ctx context.Context, tenantID uuid.UUID) ([]*models.StageSummary, error) {
	data, err := r.client.Get(ctx, pipelineKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summaries []*models.StageSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *redisCacheService) SetPipelineSummary(ctx context.Context, tenantID uuid.UUID, summaries []*models.StageSummary, ttl time.Duration) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, pipelineKey(tenantID), data, ttl).Err()
}

func (r *redisCacheService) DeletePipelineSummary(ctx context.Context, tenantID uuid.UUID) error {
	return r.client.Del(ctx, pipelineKey(tenantID)).Err()
}

func (r *redisCacheService) InvalidateTenantCache(ctx context.Context, tenantID uuid.UUID) error {
	pattern := fmt.Sprintf("pipecrm:*:%s*", tenantID.String())
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
