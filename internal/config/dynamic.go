package config

import (
	"sync"

	"github.com/raakeshmj/socialplane/internal/reliability"
)

// RateLimitPolicy holds the limiter settings that can change at runtime.
type RateLimitPolicy struct {
	FailureStrategy reliability.FailureStrategy `json:"failureStrategy"`
}

// DynamicConfigManager manages thread-safe policy updates
type DynamicConfigManager struct {
	mu     sync.RWMutex
	policy RateLimitPolicy
}

func NewDynamicConfigManager(strategy reliability.FailureStrategy) *DynamicConfigManager {
	return &DynamicConfigManager{
		policy: RateLimitPolicy{FailureStrategy: strategy},
	}
}

func (m *DynamicConfigManager) GetPolicy() RateLimitPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

func (m *DynamicConfigManager) UpdatePolicy(newPolicy RateLimitPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = newPolicy
}

// FailureStrategy is shaped for limiter.WithStrategy.
func (m *DynamicConfigManager) FailureStrategy() reliability.FailureStrategy {
	return m.GetPolicy().FailureStrategy
}
