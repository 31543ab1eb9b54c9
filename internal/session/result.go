package session

import (
	"sync"

	"kvizmajstor/internal/domain"
)

// RemedialItem pairs a missed question's video with its explanation.
type RemedialItem struct {
	Question    string `json:"question"`
	YoutubeURL  string `json:"youtubeUrl"`
	Explanation string `json:"explanation,omitempty"`
}

// ResultView is the payload a result screen renders.
type ResultView struct {
	Score          int            `json:"score"`
	CorrectCount   int            `json:"correctCount"`
	TotalQuestions int            `json:"totalQuestions"`
	Passed         bool           `json:"passed"`
	Celebrate      bool           `json:"celebrate"`
	Remedial       []RemedialItem `json:"remedial,omitempty"`
}

// Presentation wraps a graded result. The celebration for a perfect score
// fires on the first View call only; re-renders of the same result never
// restart it.
type Presentation struct {
	mu         sync.Mutex
	result     domain.QuizResult
	remedial   []RemedialItem
	celebrated bool
}

func newPresentation(graded Graded) *Presentation {
	var remedial []RemedialItem
	for _, q := range graded.Missed {
		if q.YoutubeURL == "" {
			continue
		}
		remedial = append(remedial, RemedialItem{
			Question:    q.Question,
			YoutubeURL:  q.YoutubeURL,
			Explanation: q.Explanation,
		})
	}
	return &Presentation{result: graded.Result, remedial: remedial}
}

// NewPresentation builds a result presentation from a graded submission.
func NewPresentation(graded Graded) *Presentation {
	return newPresentation(graded)
}

// Result returns the underlying graded record.
func (p *Presentation) Result() domain.QuizResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// View renders the result payload. Celebrate is true exactly once, and
// only for a perfect score.
func (p *Presentation) View() ResultView {
	p.mu.Lock()
	defer p.mu.Unlock()
	celebrate := false
	if p.result.Score == 100 && !p.celebrated {
		p.celebrated = true
		celebrate = true
	}
	return ResultView{
		Score:          p.result.Score,
		CorrectCount:   p.result.CorrectCount,
		TotalQuestions: p.result.TotalQuestions,
		Passed:         p.result.Passed,
		Celebrate:      celebrate,
		Remedial:       p.remedial,
	}
}
