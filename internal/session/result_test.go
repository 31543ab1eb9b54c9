package session_test

import (
	"testing"

	"kvizmajstor/internal/domain"
	"kvizmajstor/internal/session"
)

func TestCelebrateFiresOncePerResult(t *testing.T) {
	p := session.NewPresentation(session.Graded{
		Result: domain.QuizResult{Score: 100, CorrectCount: 3, TotalQuestions: 3, Passed: true},
	})

	if !p.View().Celebrate {
		t.Fatal("perfect score must celebrate on first render")
	}
	for i := 0; i < 5; i++ { // re-renders must not restart it
		if p.View().Celebrate {
			t.Fatal("celebration restarted on re-render")
		}
	}
}

func TestNoCelebrationBelowPerfect(t *testing.T) {
	p := session.NewPresentation(session.Graded{
		Result: domain.QuizResult{Score: 99, CorrectCount: 99, TotalQuestions: 100, Passed: true},
	})
	if p.View().Celebrate {
		t.Fatal("celebrated a non-perfect score")
	}
}

func TestRemedialOnlyForMissedQuestionsWithVideos(t *testing.T) {
	p := session.NewPresentation(session.Graded{
		Result: domain.QuizResult{Score: 33, CorrectCount: 1, TotalQuestions: 3},
		Missed: []domain.Question{
			{Question: "Missed with video", YoutubeURL: "https://youtu.be/a1", Explanation: "watch this"},
			{Question: "Missed without video"},
		},
	})

	view := p.View()
	if len(view.Remedial) != 1 {
		t.Fatalf("expected 1 remedial item, got %d", len(view.Remedial))
	}
	item := view.Remedial[0]
	if item.YoutubeURL != "https://youtu.be/a1" || item.Explanation != "watch this" {
		t.Fatalf("remedial item lost its video or explanation: %+v", item)
	}
}
