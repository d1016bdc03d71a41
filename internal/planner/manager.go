package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sheetchat/sheetchat/internal/logging"
	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/table"
)

// Manager coordinates a model-backed service with the rule-based fallback
type Manager struct {
	primary  Service
	fallback Service
	config   ManagerConfig
}

// ManagerConfig configures the manager behavior
type ManagerConfig struct {
	RetryAttempts  int           `json:"retry_attempts"`
	RetryDelay     time.Duration `json:"retry_delay"`
	Timeout        time.Duration `json:"timeout"`
	EnableFallback bool          `json:"enable_fallback"`
}

// NewManager creates a manager around a primary service. A nil primary means
// every question goes straight to the rules.
func NewManager(primary Service, config ManagerConfig) *Manager {
	return &Manager{
		primary:  primary,
		fallback: NewFallbackService(),
		config:   config,
	}
}

// Configure configures the primary service
func (m *Manager) Configure(config Config) error {
	if m.primary == nil {
		return errors.New("no primary planner configured")
	}

	return m.primary.Configure(config)
}

// Plan asks the primary service with retries, then falls back to rules when
// enabled.
func (m *Manager) Plan(ctx context.Context, question string, t *table.Table) (*plan.Result, error) {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)

		defer cancel()
	}

	if m.primary != nil {
		result, err := m.tryPrimary(ctx, question, t)
		if err == nil {
			return result, nil
		}

		logging.GetLogger().WithError(err).Warn("model planner failed")

		if !m.config.EnableFallback {
			return nil, err
		}
	} else if !m.config.EnableFallback {
		return nil, errors.New("no planner available")
	}

	logging.GetLogger().Debug("using rule-based planner")

	return m.fallback.Plan(ctx, question, t)
}

// tryPrimary attempts the primary service with retries
func (m *Manager) tryPrimary(ctx context.Context, question string, t *table.Table) (*plan.Result, error) {
	var lastErr error

	for attempt := 0; attempt <= m.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.config.RetryDelay):
			}
		}

		result, err := m.primary.Plan(ctx, question, t)
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("planner failed after %d attempts: %w", m.config.RetryAttempts+1, lastErr)
}

// DefaultManagerConfig returns a sensible default configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		RetryAttempts:  1,
		RetryDelay:     time.Second * 2,
		Timeout:        time.Second * 30,
		EnableFallback: true,
	}
}
