package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"kvizmajstor/internal/app"
	"kvizmajstor/internal/auth"
	"kvizmajstor/internal/domain"
	"kvizmajstor/internal/infra/memory"
)

type testEnv struct {
	server   *httptest.Server
	quizzes  *app.QuizService
	accounts *app.AccountService
	users    *memory.UserStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	quizStore := memory.NewSeededQuizStore(map[string]domain.Quiz{
		"quiz-1": sampleQuiz(),
	})
	categoryStore := memory.NewSeededCategoryStore([]domain.Category{
		{ID: "cat-1", Name: "Istorija", Icon: "🏛️", QuizCount: 1},
	})
	userStore := memory.NewUserStore()
	resultStore := memory.NewResultStore()
	board := memory.NewLeaderboard()

	quizzes := app.NewQuizService(quizStore, categoryStore, resultStore, userStore, board)
	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour)
	accounts := app.NewAccountService(userStore, resultStore, board, tokens)

	api := NewAPI(quizzes, accounts, "https://kvizmajstor.example")
	ws := NewWSHandler(quizzes, accounts)
	server := httptest.NewServer(api.Routes(ws))
	t.Cleanup(server.Close)

	return &testEnv{server: server, quizzes: quizzes, accounts: accounts, users: userStore}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:            "quiz-1",
		Title:         "Istorija Srbije",
		Description:   "Osnovna pitanja iz istorije",
		CategoryID:    "cat-1",
		QuestionCount: 2,
		TimeLimit:     1,
		CreatedBy:     "autor",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Type:          domain.QuestionMultiple,
				Question:      "Koji je glavni grad Srbije?",
				Options:       []string{"Novi Sad", "Beograd", "Niš"},
				CorrectAnswer: "1",
			},
			{
				ID:            "q2",
				Type:          domain.QuestionTrueFalse,
				Question:      "Dunav protiče kroz Beograd.",
				CorrectAnswer: "true",
				YoutubeURL:    "https://youtube.com/watch?v=dunav",
			},
		},
	}
}

func (e *testEnv) signup(t *testing.T, email, username string) app.AuthResponse {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"username":%q,"password":"lozinka123"}`, email, username)
	resp, err := http.Post(e.server.URL+"/api/auth/signup", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status: %d", resp.StatusCode)
	}
	var authResp app.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	return authResp
}

func (e *testEnv) do(t *testing.T, method, path, token string, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestSignupLoginMe(t *testing.T) {
	env := newTestEnv(t)

	signedUp := env.signup(t, "ana@example.com", "ana")
	if signedUp.Token == "" {
		t.Fatal("expected a token from signup")
	}

	resp, err := http.Post(env.server.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"ana@example.com","password":"lozinka123"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	loggedIn := decodeBody[app.AuthResponse](t, resp)
	if loggedIn.User.Username != "ana" {
		t.Fatalf("login user = %q, want ana", loggedIn.User.Username)
	}

	me := env.do(t, http.MethodGet, "/api/auth/me", loggedIn.Token, "")
	user := decodeBody[domain.User](t, me)
	if user.Email != "ana@example.com" {
		t.Fatalf("me email = %q", user.Email)
	}
}

func TestLoginWrongPasswordUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ana@example.com", "ana")

	resp, err := http.Post(env.server.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"ana@example.com","password":"pogresna"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAttemptQuestionsWithholdAnswerKey(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/quizzes/quiz-1/questions", "", "")
	questions := decodeBody[[]domain.Question](t, resp)
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	for _, q := range questions {
		if q.CorrectAnswer != "" {
			t.Fatalf("question %s leaked its answer key", q.ID)
		}
	}
}

func TestSubmitGradesAndResultCelebratesOnce(t *testing.T) {
	env := newTestEnv(t)

	body := `{"answers":[{"questionId":"q1","answer":1},{"questionId":"q2","answer":true}]}`
	resp := env.do(t, http.MethodPost, "/api/quizzes/quiz-1/submit", "", body)
	submitted := decodeBody[struct {
		ResultID string `json:"resultId"`
		Result   struct {
			Score     int  `json:"score"`
			Passed    bool `json:"passed"`
			Celebrate bool `json:"celebrate"`
		} `json:"result"`
	}](t, resp)

	if submitted.Result.Score != 100 || !submitted.Result.Passed {
		t.Fatalf("score = %d passed = %v, want 100/true", submitted.Result.Score, submitted.Result.Passed)
	}
	if !submitted.Result.Celebrate {
		t.Fatal("first view of a perfect score must celebrate")
	}

	again := env.do(t, http.MethodGet, "/api/results/"+submitted.ResultID, "", "")
	view := decodeBody[struct {
		Celebrate bool `json:"celebrate"`
	}](t, again)
	if view.Celebrate {
		t.Fatal("celebration must fire only once per result")
	}
}

func TestSubmitWithMissesListsRemedialVideos(t *testing.T) {
	env := newTestEnv(t)

	// q1 right, q2 wrong; q2 has a video so it shows up as remedial.
	body := `{"answers":[{"questionId":"q1","answer":1},{"questionId":"q2","answer":false}]}`
	resp := env.do(t, http.MethodPost, "/api/quizzes/quiz-1/submit", "", body)
	submitted := decodeBody[struct {
		Result struct {
			Score    int `json:"score"`
			Remedial []struct {
				YoutubeURL string `json:"youtubeUrl"`
			} `json:"remedial"`
		} `json:"result"`
	}](t, resp)

	if submitted.Result.Score != 50 {
		t.Fatalf("score = %d, want 50", submitted.Result.Score)
	}
	if len(submitted.Result.Remedial) != 1 || submitted.Result.Remedial[0].YoutubeURL == "" {
		t.Fatalf("remedial = %+v, want one entry with a video", submitted.Result.Remedial)
	}
}

func TestUnknownResultIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/results/nepostojeci", "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCategoryManagementRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	regular := env.signup(t, "ana@example.com", "ana")

	resp := env.do(t, http.MethodPost, "/api/categories", regular.Token, `{"name":"Geografija"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}

	admin := env.signup(t, "admin@example.com", "admin")
	env.promoteAdmin(t, admin.User.ID)

	created := env.do(t, http.MethodPost, "/api/categories", admin.Token, `{"name":"Geografija","icon":"🌍"}`)
	category := decodeBody[domain.Category](t, created)
	if category.ID == "" || category.Name != "Geografija" {
		t.Fatalf("created category = %+v", category)
	}

	// cat-1 still holds a quiz, so deleting it must be refused.
	blocked := env.do(t, http.MethodDelete, "/api/categories/cat-1", admin.Token, "")
	defer blocked.Body.Close()
	if blocked.StatusCode != http.StatusConflict {
		t.Fatalf("delete in-use category status = %d, want 409", blocked.StatusCode)
	}
}

// promoteAdmin flips the admin flag directly in the store; there is no
// endpoint for minting the first admin.
func (e *testEnv) promoteAdmin(t *testing.T, userID string) {
	t.Helper()
	user, err := e.users.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	user.IsAdmin = true
	if err := e.users.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("update user: %v", err)
	}
}

func TestQuizCRUDRoles(t *testing.T) {
	env := newTestEnv(t)
	regular := env.signup(t, "ana@example.com", "ana")

	quizBody := `{"title":"Novi kviz","categoryId":"cat-1","questions":[{"type":"true-false","question":"2+2=4?","correctAnswer":"true"}]}`
	forbidden := env.do(t, http.MethodPost, "/api/quizzes", regular.Token, quizBody)
	forbidden.Body.Close()
	if forbidden.StatusCode != http.StatusForbidden {
		t.Fatalf("non-creator create status = %d, want 403", forbidden.StatusCode)
	}

	admin := env.signup(t, "admin@example.com", "admin")
	env.promoteAdmin(t, admin.User.ID)

	created := env.do(t, http.MethodPost, "/api/quizzes", admin.Token, quizBody)
	quiz := decodeBody[domain.Quiz](t, created)
	if quiz.ID == "" || quiz.QuestionCount != 1 {
		t.Fatalf("created quiz = %+v", quiz)
	}

	edit := env.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID+"/edit", admin.Token, "")
	full := decodeBody[domain.Quiz](t, edit)
	if len(full.Questions) != 1 || full.Questions[0].CorrectAnswer != "true" {
		t.Fatalf("edit view should include answer keys, got %+v", full.Questions)
	}

	stranger := env.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID+"/edit", regular.Token, "")
	stranger.Body.Close()
	if stranger.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger edit status = %d, want 403", stranger.StatusCode)
	}

	deleted := env.do(t, http.MethodDelete, "/api/quizzes/"+quiz.ID, admin.Token, "")
	deleted.Body.Close()
	if deleted.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", deleted.StatusCode)
	}
}

func TestLeaderboardReflectsSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ana := env.signup(t, "ana@example.com", "ana")

	body := `{"answers":[{"questionId":"q1","answer":1},{"questionId":"q2","answer":true}]}`
	resp := env.do(t, http.MethodPost, "/api/quizzes/quiz-1/submit", ana.Token, body)
	resp.Body.Close()

	board := env.do(t, http.MethodGet, "/api/leaderboard", "", "")
	entries := decodeBody[[]domain.LeaderboardEntry](t, board)
	if len(entries) != 1 || entries[0].Username != "ana" || entries[0].Score != 100 {
		t.Fatalf("leaderboard = %+v", entries)
	}
}

func TestProgressAfterSubmission(t *testing.T) {
	env := newTestEnv(t)
	ana := env.signup(t, "ana@example.com", "ana")

	body := `{"answers":[{"questionId":"q1","answer":1},{"questionId":"q2","answer":true}]}`
	env.do(t, http.MethodPost, "/api/quizzes/quiz-1/submit", ana.Token, body).Body.Close()

	resp := env.do(t, http.MethodGet, "/api/progress", ana.Token, "")
	progress := decodeBody[domain.UserProgress](t, resp)
	if progress.TotalQuizzes != 1 || progress.TotalScore != 100 || progress.Rank != 1 {
		t.Fatalf("progress = %+v", progress)
	}
	var perfect bool
	for _, badge := range progress.Badges {
		if badge.Name == "Savršen Rezultat" && badge.Earned {
			perfect = true
		}
	}
	if !perfect {
		t.Fatal("perfect-score badge should be earned")
	}
	if len(progress.RecentActivity) != 1 || progress.RecentActivity[0].QuizTitle != "Istorija Srbije" {
		t.Fatalf("recent activity = %+v", progress.RecentActivity)
	}
}

func TestTemplateDownload(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/quizzes/template.xlsx", "", "")
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("content type = %q", got)
	}
	workbook, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("template is not a valid workbook: %v", err)
	}
	defer workbook.Close()
	rows, err := workbook.GetRows(workbook.GetSheetName(0))
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("template should carry a header and sample rows, got %d rows", len(rows))
	}
}

func TestImportAppendsQuestions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signup(t, "admin@example.com", "admin")
	env.promoteAdmin(t, admin.User.ID)

	quizBody := `{"title":"Uvozni kviz","categoryId":"cat-1","questions":[]}`
	created := env.do(t, http.MethodPost, "/api/quizzes", admin.Token, quizBody)
	quiz := decodeBody[domain.Quiz](t, created)

	var sheet bytes.Buffer
	workbook := excelize.NewFile()
	sheetName := workbook.GetSheetName(0)
	_ = workbook.SetSheetRow(sheetName, "A1", &[]string{"Tip", "Pitanje", "Opcija1", "Opcija2", "TačanOdgovor"})
	_ = workbook.SetSheetRow(sheetName, "A2", &[]string{"multiple", "Koliko je 2+2?", "3", "4", "2"})
	if err := workbook.Write(&sheet); err != nil {
		t.Fatalf("build workbook: %v", err)
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "pitanja.xlsx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(sheet.Bytes()); err != nil {
		t.Fatalf("write form: %v", err)
	}
	writer.Close()

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/quizzes/"+quiz.ID+"/import", &form)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	report := decodeBody[struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}](t, resp)
	if report.Imported != 1 || report.Skipped != 0 {
		t.Fatalf("report = %+v", report)
	}

	edit := env.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID+"/edit", admin.Token, "")
	full := decodeBody[domain.Quiz](t, edit)
	if len(full.Questions) != 1 || full.Questions[0].CorrectAnswer != "1" {
		t.Fatalf("imported questions = %+v", full.Questions)
	}
}

func TestSitemapListsQuizzes(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/sitemap.xml", "", "")
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "application/xml" {
		t.Fatalf("content type = %q", got)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "/quiz/quiz-1") {
		t.Fatalf("sitemap missing quiz URL:\n%s", buf.String())
	}
}
