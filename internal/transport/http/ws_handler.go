package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"kvizmajstor/internal/app"
	"kvizmajstor/internal/domain"
	"kvizmajstor/internal/session"
)

// WSHandler runs live quiz attempts over a websocket. One connection owns
// one session: answers, navigation, the countdown, and submission all flow
// through it.
type WSHandler struct {
	quizzes  *app.QuizService
	accounts *app.AccountService
	upgrader websocket.Upgrader
}

func NewWSHandler(quizzes *app.QuizService, accounts *app.AccountService) *WSHandler {
	return &WSHandler{
		quizzes:  quizzes,
		accounts: accounts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Index  *int          `json:"index,omitempty"`
	Answer domain.Answer `json:"answer"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type submittedPayload struct {
	ResultID string             `json:"resultId"`
	Result   session.ResultView `json:"result"`
}

// ServeAttempt upgrades the request and drives a quiz attempt until the
// client disconnects or the attempt is submitted. Browsers cannot set
// headers on websocket dials, so the bearer token rides in the query
// string; a missing or invalid token makes the attempt anonymous.
func (h *WSHandler) ServeAttempt(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	var user *domain.User
	if token := r.URL.Query().Get("token"); token != "" {
		if authed, err := h.accounts.Authenticate(r.Context(), token); err == nil {
			user = &authed
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess, err := session.Start(r.Context(), h.quizzes, h.quizzes.GraderFor(user), quizID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer sess.Close()

	sessionCtx, cancelSession := context.WithCancel(context.Background())
	defer cancelSession()
	sess.RunTimer(sessionCtx)

	snapshots, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	snapshotsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Forward session snapshots. A snapshot that only moved the countdown
	// goes out as a tick; the transition into the submitted state goes out
	// exactly once, carrying the shared result presentation.
	go func() {
		defer close(snapshotsDone)
		var last *session.Snapshot
		submittedSent := false
		for {
			select {
			case snapshot, ok := <-snapshots:
				if !ok {
					return
				}
				msg := outboundMessage{Type: "state", Payload: snapshot}
				if last != nil && tickOnly(*last, snapshot) {
					msg.Type = "tick"
				}
				snap := snapshot
				last = &snap
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
				if snapshot.State == session.StateSubmitted && !submittedSent {
					submittedSent = true
					select {
					case send <- h.submittedMessage(sess):
					case <-closeSignals:
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.dispatch(r.Context(), sess, inbound); ok {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-snapshotsDone
	close(send)
	<-writerDone
}

// dispatch applies one inbound message to the session. Mutations are
// answered through the snapshot stream; only errors produce a direct reply.
func (h *WSHandler) dispatch(ctx context.Context, sess *session.Session, inbound inboundMessage) (outboundMessage, bool) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload"), true
		}
		var err error
		if payload.Index != nil {
			err = sess.SetAnswer(*payload.Index, payload.Answer)
		} else {
			err = sess.Answer(payload.Answer)
		}
		if err != nil {
			return errorMessage(err.Error()), true
		}
	case "next":
		sess.Next()
	case "previous":
		sess.Previous()
	case "submit":
		if _, err := sess.Submit(ctx); err != nil {
			// A duplicate submit is not an error worth surfacing; the
			// submitted message already went out.
			if !errors.Is(err, session.ErrAlreadySubmitted) && !errors.Is(err, session.ErrSubmitInFlight) {
				return errorMessage(err.Error()), true
			}
		}
	default:
		return errorMessage("unsupported message type"), true
	}
	return outboundMessage{}, false
}

// submittedMessage builds the submitted event from the presentation cached
// under the result ID, so the websocket view and later REST fetches of the
// same result share one celebration.
func (h *WSHandler) submittedMessage(sess *session.Session) outboundMessage {
	presentation, ok := sess.Result()
	if !ok {
		return errorMessage("result unavailable")
	}
	resultID := presentation.Result().ID
	if shared, err := h.quizzes.ResultPresentation(resultID); err == nil {
		presentation = shared
	}
	return outboundMessage{Type: "submitted", Payload: submittedPayload{
		ResultID: resultID,
		Result:   presentation.View(),
	}}
}

func errorMessage(message string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: message}}
}

// tickOnly reports whether the only difference between two snapshots is the
// countdown value.
func tickOnly(prev, next session.Snapshot) bool {
	return prev.State == next.State &&
		prev.CurrentIndex == next.CurrentIndex &&
		prev.CurrentAnswer == next.CurrentAnswer &&
		prev.Question.ID == next.Question.ID
}
