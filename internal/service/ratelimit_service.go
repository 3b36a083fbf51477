package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
)

// Rate limit scopes of the public API.
const (
	RateScopeEvents      = "events"
	RateScopeEnrollments = "enrollments"
)

const rateWindow = 24 * time.Hour

// RateLimitService enforces per-caller daily request ceilings backed by Redis
// counters.
type RateLimitService struct {
	client   *redis.Client
	limits   map[string]int
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
}

// NewRateLimitService constructs RateLimitService. limits maps a scope to its
// daily ceiling; scopes without a positive ceiling are not limited.
func NewRateLimitService(client *redis.Client, limits map[string]int, metrics *MetricsService, logger *zap.Logger, loc *time.Location) *RateLimitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RateLimitService{client: client, limits: limits, metrics: metrics, logger: logger, location: loc}
}

// Allow counts one request of callerID in scope. It returns RATE_LIMITED once
// the daily ceiling is passed. Redis failures let the request through.
func (s *RateLimitService) Allow(ctx context.Context, scope, callerID string, now time.Time) error {
	if s == nil || s.client == nil {
		return nil
	}
	limit := s.limits[scope]
	if limit <= 0 {
		return nil
	}

	key := rateKey(scope, callerID, now.In(s.location))
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.logger.Warn("rate limit check failed", zap.String("scope", scope), zap.Error(err))
		return nil
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, rateWindow).Err(); err != nil {
			s.logger.Warn("failed to set rate limit expiry", zap.String("key", key), zap.Error(err))
		}
	}

	if count > int64(limit) {
		s.metrics.IncRateLimited(scope)
		return appErrors.Clone(appErrors.ErrRateLimited, fmt.Sprintf("daily limit of %d requests reached", limit))
	}
	return nil
}

func rateKey(scope, callerID string, day time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", scope, callerID, day.Format("2006-01-02"))
}
