package diagnostics

import (
	"context"
	"sync"

	"github.com/yanqian/horizon/internal/domain/sunreport"
)

// Discard drops every capture. It is the default when no bucket is configured.
type Discard struct{}

// CaptureMalformed implements sunreport.DiagnosticsSink.
func (Discard) CaptureMalformed(context.Context, sunreport.MalformedCapture) error { return nil }

// MemorySink keeps the most recent captures in process memory so they can be
// inspected in tests.
type MemorySink struct {
	mu       sync.Mutex
	captures []sunreport.MalformedCapture
	capacity int
}

// NewMemorySink constructs a sink holding at most capacity captures.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemorySink{capacity: capacity}
}

// CaptureMalformed implements sunreport.DiagnosticsSink.
func (s *MemorySink) CaptureMalformed(_ context.Context, capture sunreport.MalformedCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures = append(s.captures, capture)
	if overflow := len(s.captures) - s.capacity; overflow > 0 {
		s.captures = append([]sunreport.MalformedCapture(nil), s.captures[overflow:]...)
	}
	return nil
}

// Captures returns a copy of the stored captures, oldest first.
func (s *MemorySink) Captures() []sunreport.MalformedCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sunreport.MalformedCapture(nil), s.captures...)
}

var (
	_ sunreport.DiagnosticsSink = Discard{}
	_ sunreport.DiagnosticsSink = (*MemorySink)(nil)
)
