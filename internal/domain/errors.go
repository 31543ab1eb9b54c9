package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrCategoryNotFound indicates an unknown category ID.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrUserNotFound indicates an unknown account.
	ErrUserNotFound = errors.New("user not found")
	// ErrResultNotFound indicates a result ID with no stored payload.
	ErrResultNotFound = errors.New("result not found")
	// ErrEmailTaken is returned on signup with an already registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken is returned on signup with a taken username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden is returned when the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrCategoryInUse prevents deleting a category that still has quizzes.
	ErrCategoryInUse = errors.New("category still has quizzes")
)
