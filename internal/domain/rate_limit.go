package domain

import (
	"fmt"
	"time"
)

type RateLimitScope string

const (
	RateLimitScopeMessages RateLimitScope = "messages"
	RateLimitScopeUploads  RateLimitScope = "uploads"
)

// RateLimitRule: сколько действий одного типа разрешено за окно.
type RateLimitRule struct {
	Scope  RateLimitScope `json:"scope"`
	Limit  int            `json:"limit"`
	Window time.Duration  `json:"window"`
}

func (r RateLimitRule) Enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

func (r RateLimitRule) Key(subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", r.Scope, subject)
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
}
