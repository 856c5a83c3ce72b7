package remediation

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/plant-ops/greenops-engine/pkg/greenops/clock"
)

// workOrderSeqStart matches the legacy numbering so new IDs sort after the
// ones already in the maintenance system
const workOrderSeqStart = 1000

// SequenceGenerator hands out work order IDs. Implementations must be safe
// for concurrent use and never repeat an ID within the process lifetime.
type SequenceGenerator interface {
	Next() (string, error)
}

// Sequence generates IDs of the form WO-<UTC date>-<counter>. The counter is
// process-lifetime; after a restart uniqueness holds only because the counter
// restarts within a new process whose issued set is empty.
type Sequence struct {
	counter atomic.Int64
	clock   clock.Clock

	mu     sync.Mutex
	issued map[string]struct{}
}

// NewSequence creates a work order ID generator
func NewSequence(c clock.Clock) *Sequence {
	s := &Sequence{
		clock:  c,
		issued: make(map[string]struct{}),
	}
	s.counter.Store(workOrderSeqStart)
	return s
}

// Next returns the next work order ID. A repeat within this process is a
// defect and surfaces as ErrDuplicateWorkOrder rather than being silently
// reissued.
func (s *Sequence) Next() (string, error) {
	n := s.counter.Add(1)
	id := fmt.Sprintf("WO-%s-%04d", s.clock.Now().UTC().Format("20060102"), n)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.issued[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateWorkOrder, id)
	}
	s.issued[id] = struct{}{}
	return id, nil
}
