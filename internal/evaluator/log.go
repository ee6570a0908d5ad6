package evaluator

import (
	"sort"
	"sync"
)

// ExecutionLog collects the names of the providers an evaluation ran.
// Eval calls Reset once before planning and Record once per executed
// provider.
type ExecutionLog interface {
	Reset()
	Record(provider string)
}

// NopLog discards everything.
type NopLog struct{}

func (NopLog) Reset()        {}
func (NopLog) Record(string) {}

// SetLog keeps the set of executed provider names. It carries no ordering.
type SetLog struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewSetLog returns an empty SetLog.
func NewSetLog() *SetLog { return &SetLog{set: map[string]struct{}{}} }

func (l *SetLog) Reset() {
	l.mu.Lock()
	l.set = map[string]struct{}{}
	l.mu.Unlock()
}

func (l *SetLog) Record(provider string) {
	l.mu.Lock()
	if l.set == nil {
		l.set = map[string]struct{}{}
	}
	l.set[provider] = struct{}{}
	l.mu.Unlock()
}

// Has reports whether provider was recorded.
func (l *SetLog) Has(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.set[provider]
	return ok
}

// Providers returns the recorded names sorted alphabetically.
func (l *SetLog) Providers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.set))
	for p := range l.set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SeqLog keeps executed provider names in execution order.
type SeqLog struct {
	mu    sync.Mutex
	names []string
}

func (l *SeqLog) Reset() {
	l.mu.Lock()
	l.names = nil
	l.mu.Unlock()
}

func (l *SeqLog) Record(provider string) {
	l.mu.Lock()
	l.names = append(l.names, provider)
	l.mu.Unlock()
}

// Providers returns the recorded names in the order they ran.
func (l *SeqLog) Providers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}
