// Package health probes the service's dependencies on a cron schedule and
// refuses API traffic while too many of them are down.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/metrics"
	"Fixer-backend/internal/utilities"
)

// Probe checks one dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Status is the last observation of one dependency.
type Status struct {
	Name      string    `json:"name"`
	Up        bool      `json:"up"`
	Error     string    `json:"error,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report is the body of GET /health.
type Report struct {
	Status       string            `json:"status"`
	Failing      int               `json:"failing"`
	Dependencies []Status          `json:"dependencies"`
	Database     map[string]string `json:"database,omitempty"`
}

// Monitor runs probes and keeps their latest results. Until the first run
// every dependency counts as up.
type Monitor struct {
	probes    []Probe
	timeout   time.Duration
	threshold int
	log       logger.Logger

	mu     sync.RWMutex
	status map[string]Status

	cron *cron.Cron
}

func NewMonitor(timeout time.Duration, threshold int, log logger.Logger, probes ...Probe) *Monitor {
	if threshold < 1 {
		threshold = 1
	}
	return &Monitor{
		probes:    probes,
		timeout:   timeout,
		threshold: threshold,
		log:       log,
		status:    make(map[string]Status, len(probes)),
	}
}

// RunOnce probes every dependency concurrently and records the results.
func (m *Monitor) RunOnce(ctx context.Context) {
	var wg sync.WaitGroup
	results := make([]Status, len(m.probes))

	for i, p := range m.probes {
		wg.Add(1)
		go func(i int, p Probe) {
			defer wg.Done()
			results[i] = m.check(ctx, p)
		}(i, p)
	}
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range results {
		prev, seen := m.status[s.Name]
		if seen && prev.Up != s.Up {
			fields := map[string]interface{}{"dependency": s.Name}
			if s.Up {
				m.log.Info("dependency recovered", fields)
			} else {
				m.log.Warn("dependency down", map[string]interface{}{"dependency": s.Name, "error": s.Error})
			}
		}
		m.status[s.Name] = s

		up := 0.0
		if s.Up {
			up = 1
		}
		metrics.DependencyUp.WithLabelValues(s.Name).Set(up)
	}
}

func (m *Monitor) check(ctx context.Context, p Probe) Status {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	err := p.Check(ctx)
	s := Status{
		Name:      p.Name,
		Up:        err == nil,
		LatencyMS: time.Since(start).Milliseconds(),
		CheckedAt: start.UTC(),
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Start probes once, then on schedule (cron spec such as "@every 30s").
func (m *Monitor) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.RunOnce(context.Background()) }); err != nil {
		return err
	}
	m.RunOnce(context.Background())
	c.Start()
	m.cron = c
	return nil
}

// Stop halts the schedule and waits for a running probe round.
func (m *Monitor) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}

// Failing counts dependencies whose last probe failed.
func (m *Monitor) Failing() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.status {
		if !s.Up {
			n++
		}
	}
	return n
}

// Snapshot returns the current report, dependencies sorted by name.
func (m *Monitor) Snapshot() Report {
	m.mu.RLock()
	deps := make([]Status, 0, len(m.status))
	for _, s := range m.status {
		deps = append(deps, s)
	}
	m.mu.RUnlock()
	sort.Slice(deps, func(i, k int) bool { return deps[i].Name < deps[k].Name })

	r := Report{Dependencies: deps}
	for _, s := range deps {
		if !s.Up {
			r.Failing++
		}
	}
	switch {
	case r.Failing == 0:
		r.Status = "ok"
	case r.Failing < m.threshold:
		r.Status = "degraded"
	default:
		r.Status = "down"
	}
	return r
}

// ShortCircuit answers 503 while the number of failing dependencies is at
// or above the threshold.
func (m *Monitor) ShortCircuit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if failing := m.Failing(); failing >= m.threshold {
			metrics.HealthShortCircuits.Inc()
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, utilities.ErrorResponse{
				Error:   "Service temporarily unavailable",
				Code:    string(apperror.CodeServiceUnavailable),
				Details: map[string]interface{}{"failing_dependencies": failing},
			})
			return
		}
		c.Next()
	}
}

// Handler serves GET /health. dbStats may be nil.
// @Summary Health of the service and its dependencies
// @Tags Ops
// @Produce json
// @Success 200 {object} Report
// @Failure 503 {object} Report
// @Router /health [get]
func (m *Monitor) Handler(dbStats func() map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := m.Snapshot()
		if dbStats != nil {
			r.Database = dbStats()
		}
		status := http.StatusOK
		if r.Status == "down" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, r)
	}
}
