package service

import (
	"context"

	"deal_room/internal/domain"
	"deal_room/internal/repository"
	"deal_room/pkg/logger"
)

type RateLimitService interface {
	Allow(ctx context.Context, rule domain.RateLimitRule, subject string) (domain.RateLimitDecision, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	log           logger.Logger
}

func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		log:           log,
	}
}

// Allow проверяет окно и, если лимит не исчерпан, учитывает запрос.
func (s *rateLimitService) Allow(ctx context.Context, rule domain.RateLimitRule, subject string) (domain.RateLimitDecision, error) {
	decision := domain.RateLimitDecision{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}
	if !rule.Enabled() {
		return decision, nil
	}

	key := rule.Key(subject)
	allowed, err := s.rateLimitRepo.CheckLimit(ctx, key, rule.Limit)
	if err != nil {
		return decision, err
	}
	if !allowed {
		decision.Allowed = false
		decision.Remaining = 0
		return decision, nil
	}

	count, err := s.rateLimitRepo.Increment(ctx, key, rule.Window)
	if err != nil {
		s.log.Error("Rate limit increment failed", "error", err, "key", key)
		return decision, nil
	}
	decision.Remaining = max(rule.Limit-int(count), 0)
	return decision, nil
}
