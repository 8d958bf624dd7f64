// Package health reports whether the server has content to serve.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
)

// Status represents the health status of a service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Status   Status `json:"status"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// Report is the overall health.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// Check defines a single health check.
type Check struct {
	Name     string
	Check    func(ctx context.Context) error
	Timeout  time.Duration
	Critical bool // failure makes the report unhealthy, not degraded
}

const defaultTimeout = 5 * time.Second

// Checker runs health checks.
type Checker struct {
	checks  []Check
	version string
	mu      sync.RWMutex
}

// NewChecker creates a checker reporting version.
func NewChecker(version string) *Checker {
	return &Checker{version: version}
}

// AddCheck adds a check whose failure only degrades the report.
func (hc *Checker) AddCheck(name string, check func(context.Context) error, timeout time.Duration) {
	hc.add(Check{Name: name, Check: check, Timeout: timeout})
}

// AddCriticalCheck adds a check whose failure makes the report unhealthy.
func (hc *Checker) AddCriticalCheck(name string, check func(context.Context) error, timeout time.Duration) {
	hc.add(Check{Name: name, Check: check, Timeout: timeout, Critical: true})
}

func (hc *Checker) add(c Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, c)
}

// Check runs every check concurrently.
func (hc *Checker) Check(ctx context.Context) Report {
	hc.mu.RLock()
	checks := append([]Check(nil), hc.checks...)
	version := hc.version
	hc.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now(),
		Version:   version,
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, c)
		}()
	}
	wg.Wait()

	for i, c := range checks {
		r := results[i]
		report.Checks[c.Name] = r
		if r.Status == StatusHealthy {
			continue
		}
		if c.Critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func run(ctx context.Context, c Check) CheckResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Check(ctx) }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}

	r := CheckResult{Status: StatusHealthy, Duration: time.Since(start).Milliseconds()}
	if err != nil {
		r.Status = StatusUnhealthy
		r.Error = err.Error()
	}
	return r
}

// Handler serves the report as JSON: 503 when unhealthy, 200 otherwise.
func (hc *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := hc.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}

// ContentCheck fails when a language has no content at all.
func ContentCheck(store *content.Store, languages []string) func(context.Context) error {
	return func(ctx context.Context) error {
		var empty []string
		for _, lang := range languages {
			if len(store.Missing(lang)) == len(content.Types()) {
				empty = append(empty, lang)
			}
		}
		if len(empty) > 0 {
			return fmt.Errorf("no content for %s", strings.Join(empty, ", "))
		}
		return nil
	}
}

// ContentTypesCheck reports which content types are unavailable per
// language. Register it as non-critical: optional types are often absent.
func ContentTypesCheck(store *content.Store, languages []string) func(context.Context) error {
	return func(ctx context.Context) error {
		var partial []string
		for _, lang := range languages {
			missing := store.Missing(lang)
			if len(missing) == 0 {
				continue
			}
			names := make([]string, len(missing))
			for i, t := range missing {
				names[i] = t.String()
			}
			partial = append(partial, lang+":"+strings.Join(names, ","))
		}
		if len(partial) > 0 {
			return fmt.Errorf("unavailable %s", strings.Join(partial, " "))
		}
		return nil
	}
}

// SessionsCheck fails when the live session count reaches max.
func SessionsCheck(count func() int, max int) func(context.Context) error {
	return func(ctx context.Context) error {
		if n := count(); max > 0 && n >= max {
			return fmt.Errorf("live sessions at capacity: %d/%d", n, max)
		}
		return nil
	}
}
