package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rallyhub/rallyhub-backend/internal/models"
	"github.com/rallyhub/rallyhub-backend/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memoryStore 버전 검사를 repository와 같은 규칙으로 흉내 낸다
type memoryStore struct {
	mu           sync.Mutex
	matches      map[string]*models.Match
	participants map[string][]models.Participant
	writes       int

	// beforeWrite 다른 요청의 선행 쓰기 흉내 (한 번만 실행)
	beforeWrite func(stored *models.Match)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		matches:      make(map[string]*models.Match),
		participants: make(map[string][]models.Participant),
	}
}

func (s *memoryStore) seed(m *models.Match, ps []models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m.Clone()
	s.participants[m.ID] = append([]models.Participant(nil), ps...)
}

func (s *memoryStore) snapshot(id string) *models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[id]; ok {
		return m.Clone()
	}
	return nil
}

func (s *memoryStore) CreateMatch(_ context.Context, m *models.Match, ps []models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return errors.New("duplicate match")
	}
	s.matches[m.ID] = m.Clone()
	s.participants[m.ID] = append([]models.Participant(nil), ps...)
	return nil
}

func (s *memoryStore) GetMatch(_ context.Context, id string) (*models.Match, error) {
	return s.snapshot(id), nil
}

func (s *memoryStore) ListParticipants(_ context.Context, matchID string) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Participant{}, s.participants[matchID]...), nil
}

func (s *memoryStore) checkVersion(m *models.Match) (*models.Match, error) {
	stored, ok := s.matches[m.ID]
	if !ok {
		return nil, repository.ErrVersionConflict
	}
	if s.beforeWrite != nil {
		s.beforeWrite(stored)
		s.beforeWrite = nil
	}
	if stored.Version != m.Version {
		return nil, repository.ErrVersionConflict
	}
	return stored, nil
}

func (s *memoryStore) UpdateMatch(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.checkVersion(m); err != nil {
		return err
	}
	m.Version++
	s.matches[m.ID] = m.Clone()
	s.writes++
	return nil
}

func (s *memoryStore) SaveParticipants(_ context.Context, m *models.Match, ps []models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.checkVersion(m)
	if err != nil {
		return err
	}
	stored.Version++
	stored.UpdatedAt = m.UpdatedAt
	m.Version++
	s.participants[m.ID] = mergeParticipants(s.participants[m.ID], ps)
	s.writes++
	return nil
}

func (s *memoryStore) ListDueForAutoApproval(_ context.Context, submittedBefore time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, m := range s.matches {
		if StateOf(m) == StateAwaitingConfirmation && m.HasResult() && !m.ResultSubmittedAt.After(submittedBefore) {
			ids = append(ids, id)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// partnershipBook userID → 활성 조
type partnershipBook map[string]*models.Partnership

func (b partnershipBook) FindActivePartnership(_ context.Context, seasonID, userID string) (*models.Partnership, error) {
	p, ok := b[userID]
	if !ok || p.SeasonID != seasonID {
		return nil, nil
	}
	return p, nil
}

func doublesBook() partnershipBook {
	pa, pb := partnershipAliceAmy(), partnershipBobBen()
	return partnershipBook{"alice": pa, "amy": pa, "bob": pb, "ben": pb}
}

type staticDirectory map[string]models.PlayerProfile

func (d staticDirectory) LookupProfiles(_ context.Context, ids []string) (map[string]models.PlayerProfile, error) {
	out := make(map[string]models.PlayerProfile)
	for _, id := range ids {
		if p, ok := d[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (p *recordingPublisher) PublishMatchEvent(_ context.Context, e models.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []models.MatchEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.MatchEvent(nil), p.events...)
}

type memoryIdempotency struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{claimed: make(map[string]bool)}
}

func (m *memoryIdempotency) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *memoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, key)
	return nil
}

func (m *memoryIdempotency) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claimed)
}

type recordingScheduler struct {
	mu  sync.Mutex
	due map[string]time.Time
}

func (s *recordingScheduler) Schedule(_ context.Context, matchID string, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.due == nil {
		s.due = make(map[string]time.Time)
	}
	s.due[matchID] = dueAt
	return nil
}
