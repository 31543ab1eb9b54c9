package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"kvizmajstor/internal/app"
	"kvizmajstor/internal/auth"
	"kvizmajstor/internal/config"
	"kvizmajstor/internal/domain"
	"kvizmajstor/internal/infra/memory"
	pgstore "kvizmajstor/internal/infra/postgres"
	redisinfra "kvizmajstor/internal/infra/redis"
	transport "kvizmajstor/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + finalPort
	}

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		quizRepo     app.QuizRepository
		categoryRepo app.CategoryRepository
		userRepo     app.UserRepository
		resultRepo   app.ResultRepository
	)
	if pool != nil {
		store := pgstore.NewStore(pool)
		quizRepo = store
		categoryRepo = store
		userRepo = store
		resultRepo = store
	} else {
		quizRepo = memory.NewSeededQuizStore(sampleQuizzes())
		categoryRepo = memory.NewSeededCategoryStore(sampleCategories())
		userRepo = memory.NewUserStore()
		resultRepo = memory.NewResultStore()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizCache(redisClient, quizRepo, quizTTL)
	} else {
		quizRepo = memory.NewCachedQuizRepository(quizRepo, quizTTL)
	}

	var board app.Leaderboard
	if redisClient != nil {
		board = redisinfra.NewLeaderboard(redisClient)
	} else {
		board = memory.NewLeaderboard()
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = "kvizmajstor-dev-secret"
		log.Printf("auth secret not configured, using the development default")
	}
	tokens := auth.NewTokenService([]byte(secret), config.TTLDuration(cfg.Auth.TTL, 7*24*time.Hour))

	quizzes := app.NewQuizService(quizRepo, categoryRepo, resultRepo, userRepo, board)
	accounts := app.NewAccountService(userRepo, resultRepo, board, tokens)

	api := transport.NewAPI(quizzes, accounts, baseURL)
	wsHandler := transport.NewWSHandler(quizzes, accounts)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     api.Routes(wsHandler),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting kvizmajstor on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func sampleCategories() []domain.Category {
	return []domain.Category{
		{ID: "istorija", Name: "Istorija", Icon: "🏛️", Color: "#b45309", QuizCount: 1},
		{ID: "geografija", Name: "Geografija", Icon: "🌍", Color: "#047857", QuizCount: 0},
		{ID: "nauka", Name: "Nauka", Icon: "🔬", Color: "#1d4ed8", QuizCount: 0},
	}
}

// sampleQuizzes seeds the in-memory store so the server is usable without
// Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"kviz-istorija-1": {
			ID:            "kviz-istorija-1",
			Title:         "Istorija Srbije za početnike",
			Description:   "Osnovna pitanja iz srpske istorije",
			CategoryID:    "istorija",
			Difficulty:    "lako",
			QuestionCount: 3,
			TimeLimit:     2,
			CreatedBy:     "kvizmajstor",
			CreatedAt:     time.Now(),
			Questions: []domain.Question{
				{
					ID:            "q1",
					Type:          domain.QuestionMultiple,
					Question:      "Koji je glavni grad Srbije?",
					Options:       []string{"Novi Sad", "Beograd", "Niš", "Kragujevac"},
					CorrectAnswer: "1",
				},
				{
					ID:            "q2",
					Type:          domain.QuestionTrueFalse,
					Question:      "Prvi srpski ustanak izbio je 1804. godine.",
					CorrectAnswer: "true",
					Explanation:   "Ustanak je podignut u Orašcu februara 1804.",
				},
				{
					ID:            "q3",
					Type:          domain.QuestionMultiple,
					Question:      "Ko je vodio Prvi srpski ustanak?",
					Options:       []string{"Miloš Obrenović", "Karađorđe Petrović", "Vuk Karadžić"},
					CorrectAnswer: "1",
					YoutubeURL:    "https://www.youtube.com/watch?v=karadjordje",
				},
			},
		},
	}
}
