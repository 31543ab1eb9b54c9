package http

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"kvizmajstor/internal/app"
	"kvizmajstor/internal/auth"
	"kvizmajstor/internal/domain"
	"kvizmajstor/internal/importer"
)

const maxImportSize = 5 << 20

// API exposes the quiz, account, and result use cases over REST.
type API struct {
	quizzes  *app.QuizService
	accounts *app.AccountService
	baseURL  string
}

func NewAPI(quizzes *app.QuizService, accounts *app.AccountService, baseURL string) *API {
	return &API{quizzes: quizzes, accounts: accounts, baseURL: baseURL}
}

// Routes mounts every endpoint on a fresh mux.
func (a *API) Routes(ws *WSHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", a.handleSignup)
	mux.HandleFunc("POST /api/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/auth/me", a.handleMe)

	mux.HandleFunc("GET /api/categories", a.handleListCategories)
	mux.HandleFunc("POST /api/categories", a.handleCreateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", a.handleDeleteCategory)

	mux.HandleFunc("GET /api/quizzes", a.handleListQuizzes)
	mux.HandleFunc("POST /api/quizzes", a.handleCreateQuiz)
	mux.HandleFunc("GET /api/quizzes/template.xlsx", a.handleTemplate)
	mux.HandleFunc("GET /api/quizzes/{id}", a.handleGetQuiz)
	mux.HandleFunc("PUT /api/quizzes/{id}", a.handleUpdateQuiz)
	mux.HandleFunc("DELETE /api/quizzes/{id}", a.handleDeleteQuiz)
	mux.HandleFunc("GET /api/quizzes/{id}/questions", a.handleQuestions)
	mux.HandleFunc("GET /api/quizzes/{id}/edit", a.handleEditQuiz)
	mux.HandleFunc("POST /api/quizzes/{id}/submit", a.handleSubmit)
	mux.HandleFunc("POST /api/quizzes/{id}/import", a.handleImport)

	mux.HandleFunc("GET /api/results/{id}", a.handleResult)
	mux.HandleFunc("GET /api/leaderboard", a.handleLeaderboard)
	mux.HandleFunc("GET /api/users", a.handleListUsers)
	mux.HandleFunc("POST /api/users/{id}/toggle-creator", a.handleToggleCreator)
	mux.HandleFunc("GET /api/progress", a.handleProgress)

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /sitemap.xml", a.handleSitemap)

	if ws != nil {
		mux.HandleFunc("GET /ws/attempt", ws.ServeAttempt)
	}
	return mux
}

// user resolves the bearer token, if any. ok is false when the header is
// present but invalid.
func (a *API) user(r *http.Request) (*domain.User, bool) {
	token, present := auth.FromHeader(r.Header.Get("Authorization"))
	if !present {
		return nil, true
	}
	user, err := a.accounts.Authenticate(r.Context(), token)
	if err != nil {
		return nil, false
	}
	return &user, true
}

// requireUser rejects the request unless a valid bearer token is present.
func (a *API) requireUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, ok := a.user(r)
	if !ok || user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return domain.User{}, false
	}
	return *user, true
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email, username, and password are required")
		return
	}
	resp, err := a.accounts.Signup(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := a.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.quizzes.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var category domain.Category
	if err := json.NewDecoder(r.Body).Decode(&category); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if category.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	created, err := a.quizzes.CreateCategory(r.Context(), user, category)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	if err := a.quizzes.DeleteCategory(r.Context(), user, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.quizzes.ListQuizzes(r.Context(), r.URL.Query().Get("category"), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if quiz.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	created, err := a.quizzes.CreateQuiz(r.Context(), user, quiz)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.quizzes.GetQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) handleUpdateQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.quizzes.UpdateQuiz(r.Context(), user, r.PathValue("id"), quiz); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	if err := a.quizzes.DeleteQuiz(r.Context(), user, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := a.quizzes.GetAttemptQuestions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (a *API) handleEditQuiz(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	quiz, err := a.quizzes.GetEditQuiz(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	var req struct {
		Answers []domain.SubmittedAnswer `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	presentation, err := a.quizzes.SubmitFor(r.Context(), user, r.PathValue("id"), req.Answers)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ResultID string `json:"resultId"`
		Result   any    `json:"result"`
	}{ResultID: presentation.Result().ID, Result: presentation.View()})
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file upload required")
		return
	}
	defer file.Close()

	report, err := a.quizzes.ImportQuestions(r.Context(), user, r.PathValue("id"), http.MaxBytesReader(w, file, maxImportSize))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Imported int      `json:"imported"`
		Skipped  int      `json:"skipped"`
		Warnings []string `json:"warnings,omitempty"`
	}{Imported: len(report.Questions), Skipped: report.Skipped, Warnings: report.Warnings})
}

func (a *API) handleTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="pitanja-template.xlsx"`)
	if err := importer.WriteTemplate(w); err != nil {
		log.Printf("write template: %v", err)
	}
}

func (a *API) handleResult(w http.ResponseWriter, r *http.Request) {
	presentation, err := a.quizzes.ResultPresentation(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation.View())
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := a.accounts.Leaderboard(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	users, err := a.accounts.ListUsers(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleToggleCreator(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	isCreator, err := a.accounts.ToggleCreator(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		IsCreator bool `json:"isCreator"`
	}{IsCreator: isCreator})
}

func (a *API) handleProgress(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	progress, err := a.accounts.Progress(r.Context(), user, func(ctx context.Context, quizID string) string {
		quiz, err := a.quizzes.GetQuiz(ctx, quizID)
		if err != nil {
			return "Obrisan kviz"
		}
		return quiz.Title
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (a *API) handleSitemap(w http.ResponseWriter, r *http.Request) {
	ids, err := a.quizzes.QuizIDs(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	set := sitemapURLSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  []sitemapURL{{Loc: a.baseURL + "/"}, {Loc: a.baseURL + "/quizzes"}},
	}
	for _, id := range ids {
		set.URLs = append(set.URLs, sitemapURL{Loc: fmt.Sprintf("%s/quiz/%s", a.baseURL, id)})
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(set)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrCategoryNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrResultNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrCategoryInUse):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, importer.ErrNoValidQuestions):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
