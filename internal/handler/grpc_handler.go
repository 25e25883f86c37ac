package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health service names reported over gRPC.
const (
	HealthShardA    = "shard-a"
	HealthShardB    = "shard-b"
	HealthDocuments = "documents"
)

// Probe checks one backing store. A nil error means serving.
type Probe func(ctx context.Context) error

// HealthMonitor drives the gRPC health service from store probes. The
// overall ("") status is SERVING only when every store is.
type HealthMonitor struct {
	server  *health.Server
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	probes map[string]Probe
	last   map[string]bool
}

// NewHealthMonitor creates a monitor. Each probe runs with the given
// timeout.
func NewHealthMonitor(timeout time.Duration, logger zerolog.Logger) *HealthMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{
		server:  health.NewServer(),
		timeout: timeout,
		logger:  logger.With().Str("handler", "grpc_health").Logger(),
		probes:  make(map[string]Probe),
		last:    make(map[string]bool),
	}
}

// Server returns the health server to register on a grpc.Server.
func (m *HealthMonitor) Server() *health.Server {
	return m.server
}

// Register adds a named probe. The service reports NOT_SERVING until the
// first check.
func (m *HealthMonitor) Register(name string, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = probe
	m.server.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
}

// CheckNow runs every probe once and publishes the results.
func (m *HealthMonitor) CheckNow(ctx context.Context) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]bool, len(names))
	all := true
	for _, name := range names {
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.probes[name](probeCtx)
		cancel()

		ok := err == nil
		results[name] = ok
		all = all && ok

		if prev, seen := m.last[name]; !seen || prev != ok {
			ev := m.logger.Info()
			if !ok {
				ev = m.logger.Warn().Err(err)
			}
			ev.Str("store", name).Bool("serving", ok).Msg("Store health changed")
		}
		m.last[name] = ok

		m.server.SetServingStatus(name, servingStatus(ok))
	}
	m.server.SetServingStatus("", servingStatus(all))
	return results
}

// Run checks immediately and then every interval until ctx is done.
func (m *HealthMonitor) Run(ctx context.Context, interval time.Duration) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING.
func (m *HealthMonitor) Shutdown() {
	m.server.Shutdown()
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
