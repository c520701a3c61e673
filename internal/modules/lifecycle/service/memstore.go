package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"signal_bot/internal/models"
)

// MemoryStore — in-memory SignalStore с той же семантикой, что у pg-репозитория
// (CAS-переходы, идемпотентный ExpireDue). Живёт в тестах менеджера и сканера.
type MemoryStore struct {
	mu   sync.Mutex
	sigs map[uuid.UUID]*models.Signal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sigs: make(map[uuid.UUID]*models.Signal)}
}

func (s *MemoryStore) Create(_ context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sig
	s.sigs[sig.ID] = &cp
	return nil
}

func (s *MemoryStore) ListOpen(_ context.Context) ([]*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Signal
	for _, sig := range s.sigs {
		if !sig.Status.Terminal() {
			cp := *sig
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.SignalStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.sigs[id]
	if !ok || sig.Status != from || !from.CanTransition(to) {
		return false, nil
	}
	sig.Status = to
	sig.UpdatedAt = at
	if to == models.StatusTriggered {
		t := at
		sig.TriggeredAt = &t
	}
	return true, nil
}

func (s *MemoryStore) MarkTP1Hit(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sig, ok := s.sigs[id]; ok {
		sig.TP1Hit = true
		sig.UpdatedAt = at
	}
	return nil
}

func (s *MemoryStore) ExpireDue(_ context.Context, now time.Time) ([]*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Signal
	for _, sig := range s.sigs {
		if sig.Status == models.StatusPending && !sig.ExpiresAt.After(now) {
			sig.Status = models.StatusExpired
			sig.UpdatedAt = now
			cp := *sig
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ArchiveOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sig := range s.sigs {
		if sig.Status.Terminal() && sig.CreatedAt.Before(cutoff) {
			delete(s.sigs, id)
			n++
		}
	}
	return n, nil
}

// Get — для ассертов в тестах.
func (s *MemoryStore) Get(id uuid.UUID) (models.Signal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.sigs[id]
	if !ok {
		return models.Signal{}, false
	}
	return *sig, true
}
