package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"kvizmajstor/internal/domain"
)

// ErrNoValidQuestions signals that the sheet parsed fine but contained no
// usable rows. Callers show a targeted message for it, distinct from a
// hard parse failure.
var ErrNoValidQuestions = errors.New("no valid questions in sheet")

// Report summarizes an import: the parsed questions, how many rows were
// skipped, and a per-row warning for each skip. Partial success is not an
// error; the caller proceeds with the valid subset.
type Report struct {
	Questions []domain.Question
	Skipped   int
	Warnings  []string
}

// headerSynonyms maps each canonical column to its accepted header
// spellings. Headers are matched case-insensitively. Adding a locale means
// adding spellings here, nothing else.
var headerSynonyms = map[string][]string{
	"type":        {"type", "tip"},
	"question":    {"question", "pitanje"},
	"option1":     {"option1", "opcija1"},
	"option2":     {"option2", "opcija2"},
	"option3":     {"option3", "opcija3"},
	"option4":     {"option4", "opcija4"},
	"correct":     {"correctanswer", "tačanodgovor", "tacanodgovor"},
	"image":       {"imageurl", "slikaurl"},
	"video":       {"youtubeurl"},
	"explanation": {"explanation", "objašnjenje", "objasnjenje"},
}

var multipleTypes = []string{"multiple", "multiple-choice", "višestruki", "visestruki"}
var trueFalseTypes = []string{"true-false", "tačno-netačno", "tacno-netacno"}

// truthy spellings accepted for a true-false answer key; anything else is false.
var truthyAnswers = []string{"true", "tačno", "1"}

// Parse reads the first sheet of an .xlsx workbook and converts its rows
// into questions, one row per question. Malformed rows are skipped and
// counted, never fatal. A sheet that yields zero questions returns
// ErrNoValidQuestions alongside the report.
func Parse(r io.Reader) (Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Report{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Report{}, ErrNoValidQuestions
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Report{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) (Report, error) {
	if len(rows) < 2 {
		return Report{}, ErrNoValidQuestions
	}

	columns := resolveHeader(rows[0])
	report := Report{}

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		question, ok, warning := parseRow(columns, row)
		if !ok {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("row %d: %s", rowNum, warning))
			continue
		}
		report.Questions = append(report.Questions, question)
	}

	if len(report.Questions) == 0 {
		return report, ErrNoValidQuestions
	}
	return report, nil
}

// resolveHeader maps canonical field names to column indexes via the
// synonym table.
func resolveHeader(header []string) map[string]int {
	columns := make(map[string]int)
	for idx, cell := range header {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for canonical, spellings := range headerSynonyms {
			for _, spelling := range spellings {
				if normalized == spelling {
					columns[canonical] = idx
				}
			}
		}
	}
	return columns
}

func cellValue(columns map[string]int, row []string, field string) string {
	idx, ok := columns[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseRow(columns map[string]int, row []string) (domain.Question, bool, string) {
	prompt := cellValue(columns, row, "question")
	if prompt == "" {
		return domain.Question{}, false, "empty question, skipping"
	}

	rawType := strings.ToLower(cellValue(columns, row, "type"))
	q := domain.Question{
		ID:          uuid.NewString(),
		Question:    prompt,
		ImageURL:    cellValue(columns, row, "image"),
		YoutubeURL:  cellValue(columns, row, "video"),
		Explanation: cellValue(columns, row, "explanation"),
	}

	switch {
	case contains(multipleTypes, rawType):
		q.Type = domain.QuestionMultiple
		for _, field := range []string{"option1", "option2", "option3", "option4"} {
			if opt := cellValue(columns, row, field); opt != "" {
				q.Options = append(q.Options, opt)
			}
		}
		if len(q.Options) == 0 {
			return domain.Question{}, false, "multiple-choice row without options"
		}
		q.CorrectAnswer = strconv.Itoa(correctIndex(cellValue(columns, row, "correct"), len(q.Options)))
	case contains(trueFalseTypes, rawType):
		q.Type = domain.QuestionTrueFalse
		q.CorrectAnswer = strconv.FormatBool(isTruthy(cellValue(columns, row, "correct")))
	default:
		return domain.Question{}, false, fmt.Sprintf("unrecognized type %q", rawType)
	}

	return q, true, ""
}

// correctIndex converts the sheet's 1-based answer number to a 0-based
// index, clamped into [0, optionCount-1] so a sheet declaring an answer
// beyond the actual options never yields an out-of-range key.
func correctIndex(raw string, optionCount int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		n = 1
	}
	idx := n - 1
	if idx < 0 {
		return 0
	}
	if idx > optionCount-1 {
		return optionCount - 1
	}
	return idx
}

func isTruthy(raw string) bool {
	return contains(truthyAnswers, strings.ToLower(raw))
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
