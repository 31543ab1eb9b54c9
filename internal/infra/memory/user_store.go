package memory

import (
	"context"
	"sort"
	"sync"

	"kvizmajstor/internal/app"
	"kvizmajstor/internal/domain"
)

// UserStore is an in-memory account store.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *UserStore) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *UserStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *UserStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *UserStore) SetCreator(_ context.Context, userID string, isCreator bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.IsCreator = isCreator
	s.users[userID] = user
	return nil
}

func (s *UserStore) RecordCompletion(_ context.Context, userID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.TotalScore += score
	user.QuizzesCompleted++
	s.users[userID] = user
	return nil
}

// Leaderboard is the in-memory standings, used when Redis is not
// configured.
type Leaderboard struct {
	mu     sync.RWMutex
	scores map[string]int
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{scores: make(map[string]int)}
}

func (l *Leaderboard) RecordScore(_ context.Context, userID string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scores[userID] += delta
	return nil
}

func (l *Leaderboard) Top(_ context.Context, n int) ([]app.RankedUser, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ranked := make([]app.RankedUser, 0, len(l.scores))
	for userID, score := range l.scores {
		ranked = append(ranked, app.RankedUser{UserID: userID, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].UserID < ranked[j].UserID
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}
