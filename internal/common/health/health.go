// Package health keeps the set of named dependency checks for one process.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// CheckFunc reports a dependency as healthy by returning nil.
type CheckFunc func(ctx context.Context) error

// Status is the result of one check.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Report is the aggregate of every registered check.
type Report struct {
	Status string    `json:"status"`
	Checks []Status  `json:"checks"`
	Time   time.Time `json:"time"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool { return r.Status == "healthy" }

// Service owns the registered checks. The zero value is not usable; use New.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New returns a Service with the given initial checks. Each check runs with
// timeout applied.
func New(timeout time.Duration, initial map[string]CheckFunc) *Service {
	s := &Service{
		checks:  make(map[string]CheckFunc, len(initial)),
		timeout: timeout,
	}
	for name, fn := range initial {
		s.checks[name] = fn
	}
	return s
}

// Add registers or replaces a check.
func (s *Service) Add(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

// Remove drops a check. Unknown names are ignored.
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checks, name)
}

// Names returns the registered check names in sorted order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check concurrently.
func (s *Service) Run(ctx context.Context) Report {
	s.mu.RLock()
	checks := make(map[string]CheckFunc, len(s.checks))
	for name, fn := range s.checks {
		checks[name] = fn
	}
	s.mu.RUnlock()

	results := make([]Status, 0, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			st := Status{Name: name, Healthy: true}
			if err := fn(checkCtx); err != nil {
				st.Healthy = false
				st.Error = err.Error()
			}
			mu.Lock()
			results = append(results, st)
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := Report{Status: "healthy", Checks: results, Time: time.Now().UTC()}
	for _, st := range results {
		if !st.Healthy {
			report.Status = "unhealthy"
			break
		}
	}
	return report
}

// Handler serves the report as JSON, 503 when any check fails.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := s.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Healthy() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
}
