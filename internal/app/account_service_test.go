package app_test

import (
	"context"
	"testing"
	"time"

	"kvizmajstor/internal/app"
	"kvizmajstor/internal/auth"
	"kvizmajstor/internal/domain"
	"kvizmajstor/internal/infra/memory"
)

func newAccounts(t *testing.T) (*app.AccountService, *memory.UserStore, *memory.Leaderboard) {
	t.Helper()
	users := memory.NewUserStore()
	board := memory.NewLeaderboard()
	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)
	return app.NewAccountService(users, memory.NewResultStore(), board, tokens), users, board
}

func TestSignupRejectsDuplicates(t *testing.T) {
	accounts, _, _ := newAccounts(t)
	ctx := context.Background()

	if _, err := accounts.Signup(ctx, "ana@example.com", "ana", "lozinka"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := accounts.Signup(ctx, "ana@example.com", "druga", "lozinka"); err != domain.ErrEmailTaken {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	if _, err := accounts.Signup(ctx, "druga@example.com", "ana", "lozinka"); err != domain.ErrUsernameTaken {
		t.Fatalf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	accounts, _, _ := newAccounts(t)
	ctx := context.Background()
	if _, err := accounts.Signup(ctx, "ana@example.com", "ana", "lozinka"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, unknownErr := accounts.Login(ctx, "nema@example.com", "lozinka")
	_, wrongErr := accounts.Login(ctx, "ana@example.com", "pogresna")
	if unknownErr != domain.ErrInvalidCredentials || wrongErr != domain.ErrInvalidCredentials {
		t.Fatalf("unknown=%v wrong=%v, both must be ErrInvalidCredentials", unknownErr, wrongErr)
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	accounts, _, _ := newAccounts(t)
	ctx := context.Background()

	signedUp, err := accounts.Signup(ctx, "ana@example.com", "ana", "lozinka")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	user, err := accounts.Authenticate(ctx, signedUp.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != signedUp.User.ID {
		t.Fatalf("authenticated %q, want %q", user.ID, signedUp.User.ID)
	}

	if _, err := accounts.Authenticate(ctx, "nije.token.uopste"); err == nil {
		t.Fatal("garbage token must not authenticate")
	}
}

func TestToggleCreatorAdminOnly(t *testing.T) {
	accounts, users, _ := newAccounts(t)
	ctx := context.Background()

	admin := domain.User{ID: "a1", Username: "admin", IsAdmin: true}
	target := domain.User{ID: "u1", Username: "ana"}
	_ = users.CreateUser(ctx, admin)
	_ = users.CreateUser(ctx, target)

	if _, err := accounts.ToggleCreator(ctx, target, "a1"); err != domain.ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	on, err := accounts.ToggleCreator(ctx, admin, "u1")
	if err != nil || !on {
		t.Fatalf("first toggle = %v/%v, want true/nil", on, err)
	}
	off, err := accounts.ToggleCreator(ctx, admin, "u1")
	if err != nil || off {
		t.Fatalf("second toggle = %v/%v, want false/nil", off, err)
	}
}

func TestLeaderboardSkipsDeletedAccounts(t *testing.T) {
	accounts, users, board := newAccounts(t)
	ctx := context.Background()

	_ = users.CreateUser(ctx, domain.User{ID: "u1", Username: "ana", QuizzesCompleted: 2})
	_ = board.RecordScore(ctx, "u1", 150)
	_ = board.RecordScore(ctx, "duh", 999) // account no longer exists

	entries, err := accounts.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "ana" || entries[0].Score != 150 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestProgressBadgesAndRank(t *testing.T) {
	users := memory.NewUserStore()
	board := memory.NewLeaderboard()
	results := memory.NewResultStore()
	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)
	accounts := app.NewAccountService(users, results, board, tokens)
	ctx := context.Background()

	user := domain.User{ID: "u1", Username: "ana", TotalScore: 180, QuizzesCompleted: 2}
	_ = users.CreateUser(ctx, user)
	_ = board.RecordScore(ctx, "u1", 180)
	_ = board.RecordScore(ctx, "u2", 200)

	_ = results.SaveResult(ctx, domain.QuizResult{
		ID: "r1", UserID: "u1", QuizID: "quiz-1", Score: 100,
		CompletedAt: time.Now().Add(-2 * time.Hour),
	})
	_ = results.SaveResult(ctx, domain.QuizResult{
		ID: "r2", UserID: "u1", QuizID: "quiz-2", Score: 80,
		CompletedAt: time.Now().Add(-48 * time.Hour),
	})

	progress, err := accounts.Progress(ctx, user, func(_ context.Context, quizID string) string {
		return "Kviz " + quizID
	})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}

	if progress.TotalQuizzes != 2 || progress.TotalScore != 180 || progress.AverageScore != 90 {
		t.Fatalf("totals = %+v", progress)
	}
	if progress.Rank != 2 {
		t.Fatalf("rank = %d, want 2", progress.Rank)
	}

	byName := map[string]bool{}
	for _, badge := range progress.Badges {
		byName[badge.Name] = badge.Earned
	}
	if !byName["Prvi Kviz"] || !byName["Savršen Rezultat"] || byName["10 Kvizova"] {
		t.Fatalf("badges = %v", byName)
	}

	if len(progress.RecentActivity) != 2 {
		t.Fatalf("recent = %d entries, want 2", len(progress.RecentActivity))
	}
	if progress.RecentActivity[0].QuizTitle != "Kviz quiz-1" {
		t.Fatalf("recent[0] = %+v", progress.RecentActivity[0])
	}
	if progress.RecentActivity[0].Date != "pre 2 sati" {
		t.Fatalf("recent[0].Date = %q", progress.RecentActivity[0].Date)
	}
	if progress.RecentActivity[1].Date != "pre 2 dana" {
		t.Fatalf("recent[1].Date = %q", progress.RecentActivity[1].Date)
	}
}
