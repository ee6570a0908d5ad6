package grpctp

import (
	"context"
	"sync"
)

// EndpointProvider lists the reachable endpoints (host:port) of a named
// target, usually the name of a remote provider. Implementations must be
// safe for concurrent use and return at least one endpoint or an error.
type EndpointProvider interface {
	Endpoints(ctx context.Context, target string) ([]string, error)
}

// StaticEndpoints is an in-memory EndpointProvider.
type StaticEndpoints struct {
	mu   sync.RWMutex
	data map[string][]string
}

func NewStaticEndpoints(m map[string][]string) *StaticEndpoints {
	s := &StaticEndpoints{data: make(map[string][]string, len(m))}
	for k, v := range m {
		s.Set(k, v...)
	}
	return s
}

// Set replaces the endpoints of target.
func (s *StaticEndpoints) Set(target string, endpoints ...string) {
	cp := make([]string, len(endpoints))
	copy(cp, endpoints)
	s.mu.Lock()
	s.data[target] = cp
	s.mu.Unlock()
}

func (s *StaticEndpoints) Endpoints(_ context.Context, target string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.data[target]
	if len(arr) == 0 {
		return nil, ErrNoEndpoints
	}
	out := make([]string, len(arr))
	copy(out, arr)
	return out, nil
}
