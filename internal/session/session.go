package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"kvizmajstor/internal/domain"
)

// State is the lifecycle phase of one quiz attempt.
type State string

const (
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
)

var (
	// ErrSubmitInFlight suppresses a second submit while one is outstanding.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrAlreadySubmitted is returned for any mutation after submission.
	ErrAlreadySubmitted = errors.New("session already submitted")
	// ErrSessionClosed is returned for operations on a torn-down session.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotInProgress covers mutations attempted outside in_progress.
	ErrNotInProgress = errors.New("session not in progress")
)

// QuestionBank supplies quiz metadata and attempt questions. Answer keys
// must already be withheld from the question list it returns.
type QuestionBank interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetAttemptQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// Grader scores a full per-question answer list.
type Grader interface {
	Grade(ctx context.Context, quizID string, answers []domain.SubmittedAnswer) (Graded, error)
}

// Graded is the grading collaborator's response: the aggregate result plus
// the questions the user got wrong, with keys and media intact, so the
// result view can surface remedial content.
type Graded struct {
	Result domain.QuizResult
	Missed []domain.Question
}

// Snapshot is a read-only view of the session for transports and tests.
type Snapshot struct {
	QuizID           string          `json:"quizId"`
	State            State           `json:"state"`
	CurrentIndex     int             `json:"currentIndex"`
	TotalQuestions   int             `json:"totalQuestions"`
	Question         domain.Question `json:"question"`
	CurrentAnswer    domain.Answer   `json:"currentAnswer"`
	Timed            bool            `json:"timed"`
	RemainingSeconds int             `json:"remainingSeconds"`
}

// Session owns the mutable state of one quiz attempt: current-question
// pointer, recorded answers, countdown, and submission state. All state is
// guarded by one mutex; nothing outside the session mutates it.
type Session struct {
	quizID    string
	quiz      domain.Quiz
	questions []domain.Question
	grader    Grader

	mu          sync.Mutex
	state       State
	current     int
	answers     map[int]domain.Answer
	timed       bool
	remaining   int
	expired     bool
	closed      bool
	result      *Presentation
	now         func() time.Time
	subscribers map[chan Snapshot]struct{}
	cancelTimer context.CancelFunc
}

// Start loads quiz metadata and attempt questions from the bank and
// returns an in-progress session. A load failure is terminal: the error is
// returned and no session exists (transport maps it to the not-found view
// whose only action is returning to the quiz list).
func Start(ctx context.Context, bank QuestionBank, grader Grader, quizID string) (*Session, error) {
	quiz, err := bank.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := bank.GetAttemptQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuizNotFound
	}
	return newSession(quiz, questions, grader, time.Now), nil
}

// NewWithClock is test-only for deterministic timestamps.
func NewWithClock(quiz domain.Quiz, questions []domain.Question, grader Grader, now func() time.Time) *Session {
	return newSession(quiz, questions, grader, now)
}

func newSession(quiz domain.Quiz, questions []domain.Question, grader Grader, now func() time.Time) *Session {
	s := &Session{
		quizID:      quiz.ID,
		quiz:        quiz,
		questions:   questions,
		grader:      grader,
		state:       StateInProgress,
		answers:     make(map[int]domain.Answer),
		now:         now,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	if quiz.TimeLimit > 0 {
		s.timed = true
		s.remaining = quiz.TimeLimit * 60
	}
	return s
}

// Quiz returns the quiz metadata the session was started with.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// SetAnswer records value at index, overwriting any prior answer there.
// The tracker is answer-key-blind; no correctness check happens here.
func (s *Session) SetAnswer(index int, value domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.questions) {
		return ErrNotInProgress
	}
	s.answers[index] = value
	s.broadcastLocked()
	return nil
}

// Answer records value for the current question.
func (s *Session) Answer(value domain.Answer) error {
	s.mu.Lock()
	index := s.current
	s.mu.Unlock()
	return s.SetAnswer(index, value)
}

// Next advances the current-question pointer. Advancing past the last
// question is a no-op, not an error.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutableLocked() != nil {
		return
	}
	if s.current < len(s.questions)-1 {
		s.current++
		s.broadcastLocked()
	}
}

// Previous retreats the pointer, clamped at the first question.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutableLocked() != nil {
		return
	}
	if s.current > 0 {
		s.current--
		s.broadcastLocked()
	}
}

func (s *Session) mutableLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.state == StateSubmitted:
		return ErrAlreadySubmitted
	case s.state != StateInProgress:
		return ErrNotInProgress
	}
	return nil
}

// Submit sends the recorded answers to the grader. It may be called from
// any question index; visiting every question first is not required. A
// second call while one is outstanding returns ErrSubmitInFlight. On
// grading failure the session returns to in_progress with answers intact
// so the user can retry. A response arriving after Close is discarded.
func (s *Session) Submit(ctx context.Context) (*Presentation, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.state == StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case s.state == StateSubmitted:
		s.mu.Unlock()
		return s.result, ErrAlreadySubmitted
	case s.state != StateInProgress:
		s.mu.Unlock()
		return nil, ErrNotInProgress
	}
	s.state = StateSubmitting
	payload := s.payloadLocked()
	s.stopTimerLocked()
	s.broadcastLocked()
	s.mu.Unlock()

	graded, err := s.grader.Grade(ctx, s.quizID, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// Torn down while grading was in flight; drop the response.
		return nil, ErrSessionClosed
	}
	if err != nil {
		s.state = StateInProgress
		s.broadcastLocked()
		return nil, err
	}
	s.state = StateSubmitted
	s.result = newPresentation(graded)
	s.broadcastLocked()
	return s.result, nil
}

// payloadLocked produces one entry per question in order. Unanswered
// questions are explicitly marked so grading scores them wrong instead of
// silently dropping them.
func (s *Session) payloadLocked() []domain.SubmittedAnswer {
	out := make([]domain.SubmittedAnswer, len(s.questions))
	for i, q := range s.questions {
		answer, ok := s.answers[i]
		if !ok {
			answer = domain.Unanswered()
		}
		out[i] = domain.SubmittedAnswer{QuestionID: q.ID, Answer: answer}
	}
	return out
}

// Result returns the presentation after a successful submit.
func (s *Session) Result() (*Presentation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	answer, ok := s.answers[s.current]
	if !ok {
		answer = domain.Unanswered()
	}
	return Snapshot{
		QuizID:           s.quizID,
		State:            s.state,
		CurrentIndex:     s.current,
		TotalQuestions:   len(s.questions),
		Question:         s.questions[s.current].WithoutKey(),
		CurrentAnswer:    answer,
		Timed:            s.timed,
		RemainingSeconds: s.remaining,
	}
}

// Subscribe returns a channel receiving a snapshot after every mutation.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow reader never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// Close tears the session down: the countdown is cancelled and any grading
// response still in flight will be discarded. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
