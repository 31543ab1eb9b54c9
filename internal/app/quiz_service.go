package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kvizmajstor/internal/domain"
	"kvizmajstor/internal/importer"
	"kvizmajstor/internal/session"
)

// QuizRepository stores full quiz documents, answer keys included.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, categoryID, search string) ([]domain.Quiz, error)
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	DeleteQuiz(ctx context.Context, quizID string) error
	IncrementPlays(ctx context.Context, quizID string) error
}

// CategoryRepository stores quiz categories.
type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, categoryID string) (domain.Category, error)
	SaveCategory(ctx context.Context, category domain.Category) error
	DeleteCategory(ctx context.Context, categoryID string) error
	AdjustQuizCount(ctx context.Context, categoryID string, delta int) error
}

// ResultRepository stores graded attempts.
type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.QuizResult) error
	GetResult(ctx context.Context, resultID string) (domain.QuizResult, error)
	ListResultsByUser(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error)
}

// QuizService contains the quiz content, grading, and import use cases.
// It implements session.QuestionBank and session.Grader: it is both the
// question bank and the grading collaborator a session talks to.
type QuizService struct {
	quizzes    QuizRepository
	categories CategoryRepository
	results    ResultRepository
	users      UserRepository
	board      Leaderboard

	mu            sync.Mutex
	presentations map[string]*session.Presentation
	now           func() time.Time
}

func NewQuizService(quizzes QuizRepository, categories CategoryRepository, results ResultRepository, users UserRepository, board Leaderboard) *QuizService {
	return &QuizService{
		quizzes:       quizzes,
		categories:    categories,
		results:       results,
		users:         users,
		board:         board,
		presentations: make(map[string]*session.Presentation),
		now:           time.Now,
	}
}

// GetQuiz returns quiz metadata without question content.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz.Summary(), nil
}

// GetAttemptQuestions returns the ordered question list with answer keys
// withheld, in authoring order with no shuffling.
func (s *QuizService) GetAttemptQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = q.WithoutKey()
	}
	return questions, nil
}

// GetEditQuiz returns the full quiz, answer keys included. Only the owner
// or an admin may see it.
func (s *QuizService) GetEditQuiz(ctx context.Context, user domain.User, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !user.IsAdmin && quiz.CreatedBy != user.Username {
		return domain.Quiz{}, domain.ErrForbidden
	}
	return quiz, nil
}

// ListQuizzes returns quiz summaries, optionally filtered by category and
// a case-insensitive title/description search.
func (s *QuizService) ListQuizzes(ctx context.Context, categoryID, search string) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx, categoryID, search)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Quiz, len(quizzes))
	for i, quiz := range quizzes {
		out[i] = quiz.Summary()
	}
	return out, nil
}

// CreateQuiz stores a new quiz authored by user. Only creators and admins
// may author.
func (s *QuizService) CreateQuiz(ctx context.Context, user domain.User, quiz domain.Quiz) (domain.Quiz, error) {
	if !user.CanAuthor() {
		return domain.Quiz{}, domain.ErrForbidden
	}
	if _, err := s.categories.GetCategory(ctx, quiz.CategoryID); err != nil {
		return domain.Quiz{}, err
	}

	quiz.ID = uuid.NewString()
	quiz.CreatedBy = user.Username
	quiz.CreatedAt = s.now()
	quiz.Plays = 0
	quiz.Rating = 0
	quiz.QuestionCount = len(quiz.Questions)
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == "" {
			quiz.Questions[i].ID = uuid.NewString()
		}
	}

	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.categories.AdjustQuizCount(ctx, quiz.CategoryID, 1); err != nil {
		return domain.Quiz{}, err
	}
	return quiz.Summary(), nil
}

// UpdateQuiz replaces a quiz's content. Admins may edit anything, creators
// only their own quizzes.
func (s *QuizService) UpdateQuiz(ctx context.Context, user domain.User, quizID string, updated domain.Quiz) error {
	if !user.CanAuthor() {
		return domain.ErrForbidden
	}
	existing, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if !user.IsAdmin && existing.CreatedBy != user.Username {
		return domain.ErrForbidden
	}

	if existing.CategoryID != updated.CategoryID {
		if _, err := s.categories.GetCategory(ctx, updated.CategoryID); err != nil {
			return err
		}
		if err := s.categories.AdjustQuizCount(ctx, existing.CategoryID, -1); err != nil {
			return err
		}
		if err := s.categories.AdjustQuizCount(ctx, updated.CategoryID, 1); err != nil {
			return err
		}
	}

	updated.ID = existing.ID
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	updated.Plays = existing.Plays
	updated.Rating = existing.Rating
	updated.QuestionCount = len(updated.Questions)
	for i := range updated.Questions {
		if updated.Questions[i].ID == "" {
			updated.Questions[i].ID = uuid.NewString()
		}
	}
	return s.quizzes.SaveQuiz(ctx, updated)
}

// DeleteQuiz removes a quiz and decrements its category's count.
func (s *QuizService) DeleteQuiz(ctx context.Context, user domain.User, quizID string) error {
	if !user.CanAuthor() {
		return domain.ErrForbidden
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if !user.IsAdmin && quiz.CreatedBy != user.Username {
		return domain.ErrForbidden
	}
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	return s.categories.AdjustQuizCount(ctx, quiz.CategoryID, -1)
}

// Grade scores a full answer list against the quiz's answer key. Every
// entry counts toward the denominator; an unanswered or unknown entry is
// simply wrong. Implements session.Grader.
func (s *QuizService) Grade(ctx context.Context, quizID string, answers []domain.SubmittedAnswer) (session.Graded, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return session.Graded{}, err
	}

	byID := make(map[string]domain.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		byID[q.ID] = q
	}

	total := len(quiz.Questions)
	correct := 0
	var missed []domain.Question
	for _, submitted := range answers {
		question, ok := byID[submitted.QuestionID]
		if !ok {
			continue
		}
		if submitted.Answer.Matches(question) {
			correct++
		} else {
			missed = append(missed, question)
		}
	}

	score := 0
	if total > 0 {
		score = correct * 100 / total
	}
	result := domain.QuizResult{
		ID:             uuid.NewString(),
		QuizID:         quizID,
		Score:          score,
		CorrectCount:   correct,
		TotalQuestions: total,
		Passed:         score >= 70,
		CompletedAt:    s.now(),
	}
	return session.Graded{Result: result, Missed: missed}, nil
}

// SubmitFor grades an answer list and applies the side effects: the result
// is recorded, the quiz's play count bumped, and, for signed-in users, the
// account totals and leaderboard updated. user may be nil for anonymous
// attempts.
func (s *QuizService) SubmitFor(ctx context.Context, user *domain.User, quizID string, answers []domain.SubmittedAnswer) (*session.Presentation, error) {
	graded, err := s.Grade(ctx, quizID, answers)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, user, quizID, &graded)
}

// record applies submission side effects and caches the presentation under
// the result ID so later result lookups share the same instance.
func (s *QuizService) record(ctx context.Context, user *domain.User, quizID string, graded *session.Graded) (*session.Presentation, error) {
	if user != nil {
		graded.Result.UserID = user.ID
		if err := s.results.SaveResult(ctx, graded.Result); err != nil {
			return nil, err
		}
		if err := s.users.RecordCompletion(ctx, user.ID, graded.Result.Score); err != nil {
			return nil, err
		}
		if err := s.board.RecordScore(ctx, user.ID, graded.Result.Score); err != nil {
			return nil, err
		}
	}
	if err := s.quizzes.IncrementPlays(ctx, quizID); err != nil {
		return nil, err
	}

	presentation := session.NewPresentation(*graded)
	s.mu.Lock()
	s.presentations[graded.Result.ID] = presentation
	s.mu.Unlock()
	return presentation, nil
}

// GraderFor adapts the service into a session grader that also applies the
// submission side effects for user. user may be nil for anonymous attempts.
func (s *QuizService) GraderFor(user *domain.User) session.Grader {
	return graderFunc(func(ctx context.Context, quizID string, answers []domain.SubmittedAnswer) (session.Graded, error) {
		graded, err := s.Grade(ctx, quizID, answers)
		if err != nil {
			return session.Graded{}, err
		}
		if _, err := s.record(ctx, user, quizID, &graded); err != nil {
			return session.Graded{}, err
		}
		return graded, nil
	})
}

type graderFunc func(ctx context.Context, quizID string, answers []domain.SubmittedAnswer) (session.Graded, error)

func (f graderFunc) Grade(ctx context.Context, quizID string, answers []domain.SubmittedAnswer) (session.Graded, error) {
	return f(ctx, quizID, answers)
}

// ResultPresentation returns the presentation for a stored result.
// Results live only as long as the process; a result that is gone is a
// terminal not-found whose single recovery action is the quiz list.
func (s *QuizService) ResultPresentation(resultID string) (*session.Presentation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	presentation, ok := s.presentations[resultID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return presentation, nil
}

// ImportQuestions parses an .xlsx upload and appends the valid questions
// to the quiz. The import report is returned even when appending happened,
// so callers can surface the skipped-row count.
func (s *QuizService) ImportQuestions(ctx context.Context, user domain.User, quizID string, r io.Reader) (importer.Report, error) {
	quiz, err := s.GetEditQuiz(ctx, user, quizID)
	if err != nil {
		return importer.Report{}, err
	}

	report, err := importer.Parse(r)
	if err != nil {
		return report, err
	}

	quiz.Questions = append(quiz.Questions, report.Questions...)
	quiz.QuestionCount = len(quiz.Questions)
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return report, fmt.Errorf("save imported questions: %w", err)
	}
	return report, nil
}

// ListCategories returns all categories.
func (s *QuizService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.ListCategories(ctx)
}

// CreateCategory adds a category. Admin only; names must be unique.
func (s *QuizService) CreateCategory(ctx context.Context, user domain.User, category domain.Category) (domain.Category, error) {
	if !user.IsAdmin {
		return domain.Category{}, domain.ErrForbidden
	}
	existing, err := s.categories.ListCategories(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, category.Name) {
			return domain.Category{}, fmt.Errorf("category %q already exists", category.Name)
		}
	}
	category.ID = uuid.NewString()
	category.QuizCount = 0
	if err := s.categories.SaveCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// DeleteCategory removes a category. Admin only; refused while any quiz
// still references it.
func (s *QuizService) DeleteCategory(ctx context.Context, user domain.User, categoryID string) error {
	if !user.IsAdmin {
		return domain.ErrForbidden
	}
	category, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if category.QuizCount > 0 {
		return domain.ErrCategoryInUse
	}
	return s.categories.DeleteCategory(ctx, categoryID)
}

// QuizIDs lists all quiz IDs, used by the sitemap.
func (s *QuizService) QuizIDs(ctx context.Context) ([]string, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx, "", "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(quizzes))
	for i, quiz := range quizzes {
		ids[i] = quiz.ID
	}
	return ids, nil
}
