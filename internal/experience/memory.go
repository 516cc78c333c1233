package experience

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory Store for tests and ephemeral use.
// All operations are guarded by a single mutex, so concurrent writers
// cannot lose updates.
type MemoryStore struct {
	mu      sync.Mutex
	records []Experience
	stats   Stats
	max     int
	logger  *zap.Logger
}

// NewMemoryStore creates an in-memory store capped at max records.
func NewMemoryStore(max int, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if max < 1 {
		max = 1
	}
	return &MemoryStore{
		records: []Experience{},
		max:     max,
		logger:  logger,
	}
}

// Initialize ensures the stats record exists.
func (s *MemoryStore) Initialize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeStatsLocked(false)
}

// Store appends one record, evicting the oldest 20% when at capacity.
func (s *MemoryStore) Store(ctx context.Context, exp *Experience) error {
	if err := exp.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := false
	if len(s.records) >= s.max {
		s.evictLocked()
		evicted = true
	}

	s.records = append(s.records, *exp)
	s.recomputeStatsLocked(evicted)

	s.logger.Debug("experience stored",
		zap.String("id", exp.ID),
		zap.Bool("success", exp.Success),
		zap.Int("total", len(s.records)))
	return nil
}

// evictLocked retains the newest floor(max*0.8) records by timestamp.
func (s *MemoryStore) evictLocked() {
	retain := retainCount(s.max)

	sorted := make([]Experience, len(s.records))
	copy(sorted, s.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if retain < len(sorted) {
		sorted = sorted[:retain]
	}

	// Restore insertion order among the survivors.
	keep := make(map[string]bool, len(sorted))
	for _, e := range sorted {
		keep[e.ID] = true
	}
	survivors := s.records[:0]
	for _, e := range s.records {
		if keep[e.ID] {
			survivors = append(survivors, e)
		}
	}
	s.records = survivors
}

// GetAll returns all records in insertion order.
func (s *MemoryStore) GetAll(ctx context.Context) []Experience {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Experience, len(s.records))
	copy(out, s.records)
	return out
}

// GetByID returns the matching record or ErrNotFound.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Experience, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			exp := s.records[i]
			return &exp, nil
		}
	}
	return nil, ErrNotFound
}

// Search returns records containing query as a case-insensitive substring
// of task description, input, or output.
func (s *MemoryStore) Search(ctx context.Context, query string) []Experience {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var out []Experience
	for _, e := range s.records {
		if strings.Contains(strings.ToLower(e.TaskDescription), q) ||
			strings.Contains(strings.ToLower(e.Input), q) ||
			strings.Contains(strings.ToLower(e.Output), q) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByModel returns records with an exact model match.
func (s *MemoryStore) FilterByModel(ctx context.Context, model string) []Experience {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Experience
	for _, e := range s.records {
		if e.Model == model {
			out = append(out, e)
		}
	}
	return out
}

// FilterByMode returns records with an exact mode match.
func (s *MemoryStore) FilterByMode(ctx context.Context, mode Mode) []Experience {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Experience
	for _, e := range s.records {
		if e.Mode == mode {
			out = append(out, e)
		}
	}
	return out
}

// Delete removes the record; missing IDs are a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			break
		}
	}
	s.recomputeStatsLocked(false)
	return nil
}

// ClearAll removes every record and stamps the cleanup time.
func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
	s.recomputeStatsLocked(true)
	return nil
}

// SuccessRate returns (successful, failed, rate).
func (s *MemoryStore) SuccessRate(ctx context.Context) (int, int, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var successful, failed int
	for _, e := range s.records {
		if e.Success {
			successful++
		} else {
			failed++
		}
	}
	total := successful + failed
	if total == 0 {
		return 0, 0, 0
	}
	return successful, failed, 100 * float64(successful) / float64(total)
}

// Stats returns the aggregate stats record.
func (s *MemoryStore) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Export serializes the full record set to JSON.
func (s *MemoryStore) Export(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// recomputeStatsLocked refreshes the advisory aggregate record.
// LastCleanup is preserved unless cleanup just ran.
func (s *MemoryStore) recomputeStatsLocked(cleanupRan bool) {
	s.stats.TotalExperiences = len(s.records)
	if data, err := json.Marshal(s.records); err == nil {
		s.stats.TotalMemorySize = int64(len(data))
	}
	if cleanupRan {
		s.stats.LastCleanup = time.Now()
	}
}
