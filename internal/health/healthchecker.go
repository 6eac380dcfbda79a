// Package health tracks reachability of the components the contacts service
// depends on.
package health

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by component-level checkers.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker folds component checkers into one cached verdict. It
// reports unhealthy until the first evaluation.
type ServiceHealthChecker struct {
	deps []HealthChecker
	log  zerolog.Logger
	// down holds the names of failing components; nil before the first evaluation.
	down atomic.Pointer[[]string]
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

// IsHealthy reports whether every component passed the last evaluation.
func (h *ServiceHealthChecker) IsHealthy() bool {
	down := h.down.Load()
	return down != nil && len(*down) == 0
}

// Down lists the components that failed the last evaluation. Before the first
// evaluation every component is listed.
func (h *ServiceHealthChecker) Down() []string {
	if down := h.down.Load(); down != nil {
		return slices.Clone(*down)
	}
	names := make([]string, len(h.deps))
	for i, c := range h.deps {
		names[i] = c.Name()
	}
	return names
}

// Evaluate polls every component once and logs when the verdict changes.
func (h *ServiceHealthChecker) Evaluate() {
	down := []string{}
	for _, c := range h.deps {
		if !c.IsHealthy() {
			down = append(down, c.Name())
		}
	}
	prev := h.down.Swap(&down)
	switch {
	case prev != nil && slices.Equal(*prev, down):
	case len(down) == 0:
		h.log.Info().Msg("service health: UP")
	default:
		h.log.Error().Strs("down", down).Msg("service health: DOWN")
	}
}

// Start evaluates immediately and then every interval until ctx is done.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Evaluate()
		}
	}
}
