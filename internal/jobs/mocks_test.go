package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/linkmetrics/internal/cache"
	"github.com/kiranshivaraju/linkmetrics/internal/store"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

// --- mocks ---

// mockStore is an in-memory store.Store with the same conditional-update
// semantics as the Postgres implementation.
type mockStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*models.Job
	results []*models.Result
	nextID  int64

	createErr         error
	completeResultErr error
	failResultAfter   int
	completedResults  int
	completeJobErr    error
	listQueuedErr     error
	streamErr         error
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[uuid.UUID]*models.Job), failResultAfter: -1}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateJobWithResults(_ context.Context, job *models.Job, results []*models.Result) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrDuplicateKey
	}
	j := *job
	s.jobs[job.ID] = &j
	for _, r := range results {
		s.nextID++
		r.ID = s.nextID
		r.JobID = job.ID
		cp := *r
		s.results = append(s.results, &cp)
	}
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *mockStore) ListJobs(_ context.Context, filter store.JobFilter) ([]*models.Job, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		all = append(all, &cp)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].CreatedAt.After(all[b].CreatedAt) })
	return page(all, filter.Limit, filter.Offset), len(all), nil
}

func (s *mockStore) TransitionJob(_ context.Context, id uuid.UUID, to string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !models.CanTransition(j.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	return &cp, nil
}

func (s *mockStore) CompleteJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	if s.completeJobErr != nil {
		return nil, s.completeJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if j.Status != models.JobStatusRunning {
		return nil, store.ErrInvalidTransition
	}
	processed := 0
	for _, r := range s.results {
		if r.JobID == id && r.Terminal() {
			processed++
		}
	}
	j.Status = models.JobStatusCompleted
	j.ProcessedRows = processed
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	return &cp, nil
}

func (s *mockStore) ResetStaleRuns(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.jobs {
		if j.Status == models.JobStatusRunning {
			j.Status = models.JobStatusQueued
			n++
		}
	}
	return n, nil
}

func (s *mockStore) jobResults(id uuid.UUID, queuedOnly bool) []*models.Result {
	var out []*models.Result
	for _, r := range s.results {
		if r.JobID != id || (queuedOnly && r.Status != models.ResultStatusQueued) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out
}

func (s *mockStore) ListResults(_ context.Context, filter store.ResultFilter) ([]*models.Result, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.jobResults(filter.JobID, false)
	return page(all, filter.Limit, filter.Offset), len(all), nil
}

func (s *mockStore) ListQueuedResults(_ context.Context, jobID uuid.UUID) ([]*models.Result, error) {
	if s.listQueuedErr != nil {
		return nil, s.listQueuedErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobResults(jobID, true), nil
}

func (s *mockStore) StreamResults(_ context.Context, jobID uuid.UUID, fn func(*models.Result) error) error {
	if s.streamErr != nil {
		return s.streamErr
	}
	s.mu.Lock()
	rows := s.jobResults(jobID, false)
	s.mu.Unlock()
	for _, r := range rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *mockStore) CompleteResult(_ context.Context, r *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeResultErr != nil && s.failResultAfter >= 0 && s.completedResults >= s.failResultAfter {
		return s.completeResultErr
	}
	for i, existing := range s.results {
		if existing.ID != r.ID {
			continue
		}
		if existing.Status != models.ResultStatusQueued {
			return store.ErrResultNotQueued
		}
		cp := *r
		s.results[i] = &cp
		s.completedResults++
		return nil
	}
	return store.ErrNotFound
}

func (s *mockStore) job(id uuid.UUID) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *mockStore) allResults(id uuid.UUID) []*models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobResults(id, false)
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := min(offset+limit, len(all))
	return all[offset:end]
}

var _ store.Store = (*mockStore)(nil)

type mockCache struct {
	mu      sync.Mutex
	lastRun map[uuid.UUID]models.JobRunSummary
	err     error
}

func newMockCache() *mockCache {
	return &mockCache{lastRun: make(map[uuid.UUID]models.JobRunSummary)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)          { return nil, false, nil }
func (c *mockCache) Ping(_ context.Context) error                                    { return nil }
func (c *mockCache) Close() error                                                    { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.lastRun {
		if cache.LastRunKey(id) == key {
			delete(c.lastRun, id)
		}
	}
	return nil
}

func (c *mockCache) SetLastRun(_ context.Context, summary *models.JobRunSummary, _ time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun[summary.JobID] = *summary
	return nil
}

func (c *mockCache) GetLastRun(_ context.Context, jobID uuid.UUID) (*models.JobRunSummary, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.lastRun[jobID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

var errStoreDown = errors.New("store down")
