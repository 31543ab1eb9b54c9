package domain

import "time"

// QuestionType distinguishes the two supported question shapes.
type QuestionType string

const (
	QuestionMultiple  QuestionType = "multiple"
	QuestionTrueFalse QuestionType = "true-false"
)

// Question models a single quiz question. CorrectAnswer holds the answer
// key: a 0-based option index for multiple choice, "true"/"false" for
// true-false. It is stripped before questions are handed to an attempt.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	YoutubeURL    string       `json:"youtubeUrl,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// WithoutKey returns a copy of the question safe to show during an attempt.
func (q Question) WithoutKey() Question {
	q.CorrectAnswer = ""
	return q
}

// Quiz is an authored collection of ordered questions with metadata.
// TimeLimit is in minutes, PerQuestionTime in seconds; zero means unlimited.
type Quiz struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	CategoryID      string     `json:"categoryId"`
	Difficulty      string     `json:"difficulty"`
	QuestionCount   int        `json:"questionCount"`
	TimeLimit       int        `json:"timeLimit"`
	PerQuestionTime int        `json:"perQuestionTime,omitempty"`
	Plays           int        `json:"plays"`
	Rating          float64    `json:"rating"`
	CreatedBy       string     `json:"createdBy"`
	Questions       []Question `json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
}

// Summary strips question content for listing responses.
func (q Quiz) Summary() Quiz {
	q.Questions = nil
	return q
}

// Category groups quizzes for browsing.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
	QuizCount int    `json:"quizCount"`
}

// User is a registered account. Password holds the bcrypt hash and is
// never serialized.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	Password         string    `json:"-"`
	Avatar           string    `json:"avatar"`
	IsAdmin          bool      `json:"isAdmin"`
	IsCreator        bool      `json:"isCreator"`
	TotalScore       int       `json:"totalScore"`
	QuizzesCompleted int       `json:"quizzesCompleted"`
	CreatedAt        time.Time `json:"createdAt,omitempty"`
}

// CanAuthor reports whether the user may create or edit quizzes.
func (u User) CanAuthor() bool {
	return u.IsAdmin || u.IsCreator
}

// SubmittedAnswer pairs a question with the answer recorded for it. One
// entry per question is sent to grading; unanswered questions carry an
// unanswered Answer rather than being omitted.
type SubmittedAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     Answer `json:"answer"`
}

// QuizResult is a graded attempt.
type QuizResult struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId,omitempty"`
	QuizID         string    `json:"quizId"`
	Score          int       `json:"score"`
	CorrectCount   int       `json:"correctCount"`
	TotalQuestions int       `json:"totalQuestions"`
	Passed         bool      `json:"passed"`
	CompletedAt    time.Time `json:"completedAt"`
}

// LeaderboardEntry is one row of the global standings.
type LeaderboardEntry struct {
	UserID           string `json:"id"`
	Username         string `json:"username"`
	Score            int    `json:"score"`
	QuizzesCompleted int    `json:"quizzesCompleted"`
	Avatar           string `json:"avatar"`
}

// Badge marks a milestone on a user's profile.
type Badge struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Earned bool   `json:"earned"`
}

// RecentActivity is one recently completed quiz on the progress view.
type RecentActivity struct {
	QuizTitle string `json:"quizTitle"`
	Score     int    `json:"score"`
	Date      string `json:"date"`
}

// UserProgress aggregates a user's standing for the profile view.
type UserProgress struct {
	TotalQuizzes   int              `json:"totalQuizzes"`
	TotalScore     int              `json:"totalScore"`
	AverageScore   int              `json:"averageScore"`
	Rank           int              `json:"rank"`
	Badges         []Badge          `json:"badges"`
	RecentActivity []RecentActivity `json:"recentActivity"`
}
