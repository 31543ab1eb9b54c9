package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"kvizmajstor/internal/domain"
)

// Store persists quizzes, categories, users, and results in Postgres.
// Quizzes are stored as JSONB documents keyed by id; the relational tables
// hold the data the service filters and aggregates on.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}

func (s *Store) ListQuizzes(ctx context.Context, categoryID, search string) ([]domain.Quiz, error) {
	query := `SELECT data FROM quizzes WHERE 1=1`
	args := []interface{}{}
	if categoryID != "" && categoryID != "all" {
		args = append(args, categoryID)
		query += fmt.Sprintf(` AND data->>'categoryId' = $%d`, len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(` AND (data->>'title' ILIKE $%d OR data->>'description' ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY data->>'createdAt' DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return nil, fmt.Errorf("unmarshal quiz: %w", err)
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

func (s *Store) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		quiz.ID, raw)
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) IncrementPlays(ctx context.Context, quizID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes
		 SET data = jsonb_set(data, '{plays}', to_jsonb(COALESCE((data->>'plays')::int, 0) + 1))
		 WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("increment plays: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, icon, color, quiz_count FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.QuizCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, categoryID string) (domain.Category, error) {
	var c domain.Category
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, icon, color, quiz_count FROM categories WHERE id=$1`, categoryID).
		Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &c.QuizCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("load category: %w", err)
	}
	return c, nil
}

func (s *Store) SaveCategory(ctx context.Context, category domain.Category) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (id, name, icon, color, quiz_count)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name=$2, icon=$3, color=$4, quiz_count=$5`,
		category.ID, category.Name, category.Icon, category.Color, category.QuizCount)
	if err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, categoryID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id=$1`, categoryID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) AdjustQuizCount(ctx context.Context, categoryID string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE categories SET quiz_count = GREATEST(quiz_count + $2, 0) WHERE id=$1`,
		categoryID, delta)
	if err != nil {
		return fmt.Errorf("adjust quiz count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, password, avatar, is_admin, is_creator, total_score, quizzes_completed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.Username, user.Password, user.Avatar,
		user.IsAdmin, user.IsCreator, user.TotalScore, user.QuizzesCompleted, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return s.getUser(ctx, `WHERE id=$1`, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.getUser(ctx, `WHERE email=$1`, email)
}

func (s *Store) getUser(ctx context.Context, where string, arg interface{}) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, username, password, avatar, is_admin, is_creator, total_score, quizzes_completed, created_at
		 FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.Username, &u.Password, &u.Avatar,
			&u.IsAdmin, &u.IsCreator, &u.TotalScore, &u.QuizzesCompleted, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, username, password, avatar, is_admin, is_creator, total_score, quizzes_completed, created_at
		 FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.Password, &u.Avatar,
			&u.IsAdmin, &u.IsCreator, &u.TotalScore, &u.QuizzesCompleted, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) SetCreator(ctx context.Context, userID string, isCreator bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET is_creator=$2 WHERE id=$1`, userID, isCreator)
	if err != nil {
		return fmt.Errorf("set creator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) RecordCompletion(ctx context.Context, userID string, score int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET total_score = total_score + $2, quizzes_completed = quizzes_completed + 1 WHERE id=$1`,
		userID, score)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Store) SaveResult(ctx context.Context, result domain.QuizResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results (id, user_id, quiz_id, score, correct_count, total_questions, passed, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.ID, result.UserID, result.QuizID, result.Score,
		result.CorrectCount, result.TotalQuestions, result.Passed, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, resultID string) (domain.QuizResult, error) {
	var r domain.QuizResult
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, quiz_id, score, correct_count, total_questions, passed, completed_at
		 FROM results WHERE id=$1`, resultID).
		Scan(&r.ID, &r.UserID, &r.QuizID, &r.Score, &r.CorrectCount, &r.TotalQuestions, &r.Passed, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.QuizResult{}, fmt.Errorf("load result: %w", err)
	}
	return r, nil
}

func (s *Store) ListResultsByUser(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, quiz_id, score, correct_count, total_questions, passed, completed_at
		 FROM results WHERE user_id=$1 ORDER BY completed_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizResult
	for rows.Next() {
		var r domain.QuizResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.QuizID, &r.Score, &r.CorrectCount, &r.TotalQuestions, &r.Passed, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
