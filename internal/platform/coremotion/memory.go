package coremotion

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/motion/internal/domain"
)

// DefaultMemoryCapacity bounds MemoryStore when no capacity is given.
const DefaultMemoryCapacity = 10000

// MemoryStore keeps the most recent samples in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	samples  []domain.MotionSample
}

// NewMemoryStore returns a store holding at most capacity samples.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Record implements SampleStore.
func (s *MemoryStore) Record(_ context.Context, sample domain.MotionSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	if over := len(s.samples) - s.capacity; over > 0 {
		s.samples = append(s.samples[:0:0], s.samples[over:]...)
	}
	return nil
}

// QueryActivities implements SampleStore. Bounds are inclusive.
func (s *MemoryStore) QueryActivities(_ context.Context, start, end time.Time) ([]domain.HistoricalActivity, error) {
	s.mu.Lock()
	matched := make([]domain.MotionSample, 0, len(s.samples))
	for _, sample := range s.samples {
		if sample.StartDate.Before(start) || sample.StartDate.After(end) {
			continue
		}
		matched = append(matched, sample)
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].StartDate.Before(matched[j].StartDate) })

	out := make([]domain.HistoricalActivity, 0, len(matched))
	for _, sample := range matched {
		out = append(out, sample.Historical())
	}
	return out, nil
}

var _ SampleStore = (*MemoryStore)(nil)
