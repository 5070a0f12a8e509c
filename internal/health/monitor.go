package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Check is a named dependency check. A failing critical check makes the whole
// service critical; any other failure only degrades it.
type Check struct {
	Name     string
	Critical bool
	Run      CheckFunc
}

// Monitor aggregates health status from the service dependencies.
type Monitor struct {
	service    string
	checks     []Check
	interval   time.Duration
	timeout    time.Duration
	now        func() time.Time
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(service string, checks ...Check) *Monitor {
	return &Monitor{
		service:  service,
		checks:   checks,
		interval: 10 * time.Second,
		timeout:  2 * time.Second,
		now:      time.Now,
	}
}

// CheckHealth runs every check and aggregates the result. Results are reused
// for a short interval so that frequent probes do not hammer the backends.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && m.now().Sub(m.lastCheck) < m.interval {
		return *m.lastReport
	}

	report := HealthReport{
		Service:      m.service,
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.checks)),
	}

	for _, check := range m.checks {
		health := m.run(ctx, check)
		report.Components[check.Name] = health

		switch {
		case health.Status == StatusCritical:
			report.SystemStatus = StatusCritical
		case health.Status == StatusDegraded && report.SystemStatus == StatusHealthy:
			report.SystemStatus = StatusDegraded
		}
	}

	m.lastCheck = m.now()
	m.lastReport = &report
	return report
}

func (m *Monitor) run(ctx context.Context, check Check) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := check.Run(ctx)
	health := ComponentHealth{
		Name:      check.Name,
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		health.Error = err.Error()
		health.Status = StatusDegraded
		if check.Critical {
			health.Status = StatusCritical
		}
	}
	return health
}
