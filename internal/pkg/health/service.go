package health

import (
	"context"
	"sync"
	"time"
)

// DefaultTimeout bounds a single provider check
const DefaultTimeout = 5 * time.Second

// Service aggregates health providers. A critical provider that is DOWN
// takes the whole service DOWN; any other unhealthy provider only degrades it.
type Service struct {
	timeout   time.Duration
	mu        sync.RWMutex
	providers []HealthProvider
	critical  map[string]bool
}

// NewService creates a new health service
func NewService(timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		timeout:  timeout,
		critical: make(map[string]bool),
	}
}

// RegisterProvider registers a health provider
func (s *Service) RegisterProvider(p HealthProvider, critical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
	s.critical[p.Name()] = critical
}

// Check runs all health checks in parallel
func (s *Service) Check(ctx context.Context) ([]HealthCheckResult, HealthStatus) {
	s.mu.RLock()
	providers := make([]HealthProvider, len(s.providers))
	copy(providers, s.providers)
	s.mu.RUnlock()

	if len(providers) == 0 {
		return []HealthCheckResult{}, StatusDown
	}

	results := make([]HealthCheckResult, len(providers))
	var wg sync.WaitGroup

	for i, provider := range providers {
		wg.Add(1)
		go func(idx int, p HealthProvider) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			resultCh := make(chan HealthCheckResult, 1)
			go func() {
				resultCh <- p.Check(checkCtx)
			}()

			select {
			case result := <-resultCh:
				results[idx] = result
			case <-checkCtx.Done():
				results[idx] = HealthCheckResult{
					Name:      p.Name(),
					Status:    StatusDown,
					CheckedAt: time.Now(),
					Error:     "health check timeout",
				}
			}
		}(i, provider)
	}

	wg.Wait()
	return results, s.aggregate(results)
}

func (s *Service) aggregate(results []HealthCheckResult) HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := StatusUp
	for _, result := range results {
		switch result.Status {
		case StatusDown:
			if s.critical[result.Name] {
				return StatusDown
			}
			status = StatusDegraded
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// GetHealthResponse returns a formatted health response
func (s *Service) GetHealthResponse(ctx context.Context) HealthResponse {
	results, status := s.Check(ctx)
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    results,
	}
}
