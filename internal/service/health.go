package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthCheck probes one backing component.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

type HealthService interface {
	Check(ctx context.Context) HealthReport
}

type healthService struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthService(timeout time.Duration, checks ...HealthCheck) HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &healthService{checks: checks, timeout: timeout}
}

func (s *healthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{Status: HealthOK, Components: make(map[string]string, len(s.checks))}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range s.checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			status := HealthOK
			if err := c.Check(checkCtx); err != nil {
				slog.WarnContext(ctx, "health check failed", "component", c.Name, "error", err)
				status = "error: " + err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Components[c.Name] = status
			if status != HealthOK {
				report.Status = HealthDegraded
			}
		}(c)
	}
	wg.Wait()

	return report
}
