package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultProbeTimeout = 2 * time.Second

// RemoteHealthChecker probes the remote store with HealthPing.
type RemoteHealthChecker struct {
	pinger       HealthPinger
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

// NewRemoteHealthChecker starts unhealthy until the first successful probe.
func NewRemoteHealthChecker(pinger HealthPinger, log zerolog.Logger, probeTimeout time.Duration) *RemoteHealthChecker {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	hc := &RemoteHealthChecker{pinger: pinger, log: log, probeTimeout: probeTimeout}
	hc.healthy.Store(0)
	return hc
}

func (hc *RemoteHealthChecker) Name() string { return "remote" }

// IsHealthy returns the cached health status (non-blocking).
func (hc *RemoteHealthChecker) IsHealthy() bool { return hc.healthy.Load() == 1 }

// Probe pings the remote once, stores the result and returns it.
func (hc *RemoteHealthChecker) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, hc.probeTimeout)
	defer cancel()

	if err := hc.pinger.HealthPing(probeCtx); err != nil {
		hc.log.Error().
			Str("checker", hc.Name()).
			Err(err).
			Msg("remote health check failed")
		hc.healthy.Store(0)
		return false
	}
	hc.healthy.Store(1)
	return true
}

// Start begins periodic health checking.
func (hc *RemoteHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hc.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.Probe(ctx)
		}
	}
}
