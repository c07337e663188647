// Package storetest provides an in-memory Store for unit testing the
// pipeline services without a database.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/railbird/handreel/internal/store"
	"github.com/railbird/handreel/pkg/models"
)

// MemStore satisfies store.Store with in-memory maps. The single mutex
// stands in for the row lock: UpdateJobLocked callbacks run serialized,
// matching the transactional semantics of the Postgres store.
type MemStore struct {
	mu      sync.Mutex
	Jobs    map[uuid.UUID]*models.AnalysisJob
	Hands   map[uuid.UUID]*models.Hand
	Streams map[string]*models.Stream
	Keys    map[string][]*models.APIKey

	// FailNextCreateHand makes the next CreateHand return this error.
	FailNextCreateHand error
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		Jobs:    make(map[uuid.UUID]*models.AnalysisJob),
		Hands:   make(map[uuid.UUID]*models.Hand),
		Streams: make(map[string]*models.Stream),
		Keys:    make(map[string][]*models.APIKey),
	}
}

func (m *MemStore) Ping(_ context.Context) error { return nil }

func (m *MemStore) CreateJob(_ context.Context, job *models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.Jobs[job.ID]; exists {
		return store.ErrDuplicateKey
	}
	cp := *job
	m.Jobs[job.ID] = &cp
	return nil
}

func (m *MemStore) GetJob(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemStore) UpdateJobLocked(_ context.Context, id uuid.UUID, fn func(job *models.AnalysisJob) error) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	if err := fn(&cp); err != nil {
		return nil, err
	}
	m.Jobs[id] = &cp
	out := cp
	return &out, nil
}

func (m *MemStore) CreateHand(_ context.Context, hand *models.Hand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNextCreateHand != nil {
		err := m.FailNextCreateHand
		m.FailNextCreateHand = nil
		return err
	}
	cp := *hand
	m.Hands[hand.ID] = &cp
	return nil
}

func (m *MemStore) FindHandNear(_ context.Context, streamID string, tsStart, tolerance int) (*models.Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Hand
	for _, h := range m.Hands {
		if h.StreamID != streamID {
			continue
		}
		diff := h.VideoTsStart - tsStart
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			continue
		}
		if best == nil || absDiff(h.VideoTsStart, tsStart) < absDiff(best.VideoTsStart, tsStart) {
			best = h
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MemStore) ListHandsByStream(_ context.Context, streamID string) ([]*models.Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hands []*models.Hand
	for _, h := range m.Hands {
		if h.StreamID == streamID {
			cp := *h
			hands = append(hands, &cp)
		}
	}
	sort.Slice(hands, func(i, j int) bool {
		return hands[i].VideoTsStart < hands[j].VideoTsStart
	})
	return hands, nil
}

func (m *MemStore) UpdateHandNumbers(_ context.Context, numbers []store.HandNumber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range numbers {
		if h, ok := m.Hands[n.ID]; ok {
			h.Number = n.Number
		}
	}
	return nil
}

func (m *MemStore) DeleteHands(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.Hands, id)
	}
	return nil
}

func (m *MemStore) UpsertStreamStatus(_ context.Context, streamID, status string, handsCount *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Streams[streamID]
	if !ok {
		s = &models.Stream{ID: streamID}
		m.Streams[streamID] = s
	}
	s.AnalysisStatus = status
	if handsCount != nil {
		s.HandsCount = *handsCount
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Keys[prefix], nil
}

func (m *MemStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, keys := range m.Keys {
		for _, k := range keys {
			if k.ID == id {
				k.LastUsedAt = &now
			}
		}
	}
	return nil
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// Compile-time check that MemStore implements Store.
var _ store.Store = (*MemStore)(nil)
