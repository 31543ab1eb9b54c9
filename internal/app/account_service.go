package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kvizmajstor/internal/auth"
	"kvizmajstor/internal/domain"
)

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetCreator(ctx context.Context, userID string, isCreator bool) error
	RecordCompletion(ctx context.Context, userID string, score int) error
}

// Leaderboard keeps the global standings. RecordScore adds delta to a
// user's total; Top returns user IDs with scores, best first.
type Leaderboard interface {
	RecordScore(ctx context.Context, userID string, delta int) error
	Top(ctx context.Context, n int) ([]RankedUser, error)
}

// RankedUser is a leaderboard row before it is joined with account data.
type RankedUser struct {
	UserID string
	Score  int
}

// AccountService contains the identity and profile use cases. The
// authenticated principal is resolved per request and passed explicitly;
// nothing reads ambient globals.
type AccountService struct {
	users   UserRepository
	results ResultRepository
	board   Leaderboard
	tokens  *auth.TokenService
	now     func() time.Time
}

func NewAccountService(users UserRepository, results ResultRepository, board Leaderboard, tokens *auth.TokenService) *AccountService {
	return &AccountService{users: users, results: results, board: board, tokens: tokens, now: time.Now}
}

// AuthResponse pairs the account with its bearer token.
type AuthResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// Signup registers an account and signs it in.
func (s *AccountService) Signup(ctx context.Context, email, username, password string) (AuthResponse, error) {
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return AuthResponse{}, domain.ErrEmailTaken
	}
	existing, err := s.users.ListUsers(ctx)
	if err != nil {
		return AuthResponse{}, err
	}
	for _, u := range existing {
		if u.Username == username {
			return AuthResponse{}, domain.ErrUsernameTaken
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return AuthResponse{}, err
	}
	user := domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Username:  username,
		Password:  hash,
		Avatar:    "👤",
		CreatedAt: s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return AuthResponse{}, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{User: user, Token: token}, nil
}

// Login verifies credentials and issues a token. The same error covers an
// unknown email and a wrong password.
func (s *AccountService) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return AuthResponse{}, domain.ErrInvalidCredentials
	}
	if !auth.VerifyPassword(user.Password, password) {
		return AuthResponse{}, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to its account.
func (s *AccountService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.GetUser(ctx, userID)
}

// GetUser returns an account by ID.
func (s *AccountService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.users.GetUser(ctx, userID)
}

// ListUsers returns every account. Admin only.
func (s *AccountService) ListUsers(ctx context.Context, caller domain.User) ([]domain.User, error) {
	if !caller.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return s.users.ListUsers(ctx)
}

// ToggleCreator flips a user's creator privilege. Admin only.
func (s *AccountService) ToggleCreator(ctx context.Context, caller domain.User, targetID string) (bool, error) {
	if !caller.IsAdmin {
		return false, domain.ErrForbidden
	}
	target, err := s.users.GetUser(ctx, targetID)
	if err != nil {
		return false, err
	}
	newStatus := !target.IsCreator
	if err := s.users.SetCreator(ctx, targetID, newStatus); err != nil {
		return false, err
	}
	return newStatus, nil
}

// Leaderboard returns the top standings joined with account data.
func (s *AccountService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	ranked, err := s.board.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for _, row := range ranked {
		user, err := s.users.GetUser(ctx, row.UserID)
		if err != nil {
			continue // account deleted since scoring; skip the row
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:           user.ID,
			Username:         user.Username,
			Score:            row.Score,
			QuizzesCompleted: user.QuizzesCompleted,
			Avatar:           user.Avatar,
		})
	}
	return entries, nil
}

// Progress aggregates a user's totals, rank, badges, and recent activity.
func (s *AccountService) Progress(ctx context.Context, user domain.User, quizTitle func(ctx context.Context, quizID string) string) (domain.UserProgress, error) {
	results, err := s.results.ListResultsByUser(ctx, user.ID, 10)
	if err != nil {
		return domain.UserProgress{}, err
	}

	recent := make([]domain.RecentActivity, 0, 3)
	perfect := false
	for _, result := range results {
		if result.Score == 100 {
			perfect = true
		}
		if len(recent) < 3 {
			recent = append(recent, domain.RecentActivity{
				QuizTitle: quizTitle(ctx, result.QuizID),
				Score:     result.Score,
				Date:      humanizeSince(s.now().Sub(result.CompletedAt)),
			})
		}
	}

	rank, err := s.rank(ctx, user.ID)
	if err != nil {
		return domain.UserProgress{}, err
	}

	average := 0
	if user.QuizzesCompleted > 0 {
		average = user.TotalScore / user.QuizzesCompleted
	}
	return domain.UserProgress{
		TotalQuizzes: user.QuizzesCompleted,
		TotalScore:   user.TotalScore,
		AverageScore: average,
		Rank:         rank,
		Badges: []domain.Badge{
			{ID: "1", Name: "Prvi Kviz", Icon: "🎯", Earned: user.QuizzesCompleted >= 1},
			{ID: "2", Name: "Savršen Rezultat", Icon: "💯", Earned: perfect},
			{ID: "3", Name: "10 Kvizova", Icon: "🔟", Earned: user.QuizzesCompleted >= 10},
		},
		RecentActivity: recent,
	}, nil
}

func (s *AccountService) rank(ctx context.Context, userID string) (int, error) {
	ranked, err := s.board.Top(ctx, 10000)
	if err != nil {
		return 0, err
	}
	for idx, row := range ranked {
		if row.UserID == userID {
			return idx + 1, nil
		}
	}
	return len(ranked) + 1, nil
}

func humanizeSince(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("pre %d dana", int(d.Hours())/24)
	case d >= time.Hour:
		return fmt.Sprintf("pre %d sati", int(d.Hours()))
	default:
		minutes := int(d.Minutes())
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Sprintf("pre %d minuta", minutes)
	}
}
