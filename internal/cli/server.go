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
	"github.com/leegarner/quizzer/internal/app"
	"github.com/leegarner/quizzer/internal/config"
	"github.com/leegarner/quizzer/internal/domain"
	"github.com/leegarner/quizzer/internal/infra/memory"
	pgstore "github.com/leegarner/quizzer/internal/infra/postgres"
	redcache "github.com/leegarner/quizzer/internal/infra/redis"
	transport "github.com/leegarner/quizzer/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
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

	var store app.Store
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewStore(pool)
	} else {
		memStore := memory.NewStore()
		seedDemoQuiz(ctx, memStore)
		store = memStore
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var quizzes app.QuizCache
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		quizzes = redcache.NewQuizCache(redisClient, store, cacheTTL)
	} else {
		quizzes = memory.NewQuizCache(store, cacheTTL)
	}

	access := memory.NewGroupChecker()
	rewards := memory.NewLogRewards()

	quizService := app.NewQuizService(store, quizzes, access)
	sessions := app.NewSessionService(store, quizzes, access, rewards)
	reports := app.NewReportService(store, quizzes, access)

	handler := transport.NewHandler(quizService, sessions, reports)
	hub := transport.NewResultsHub(reports)
	sessions.SetCompletionListener(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/results", hub.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizzer on :%s", finalPort)
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

// seedDemoQuiz loads a small quiz so the in-memory configuration is usable
// out of the box.
func seedDemoQuiz(ctx context.Context, store *memory.Store) {
	quiz := domain.Quiz{
		ID:          "quiz-1",
		Name:        "Arithmetic warmup",
		IntroText:   "A quick check before we start.",
		IntroFields: []string{"Full Name"},
		Levels:      []float64{80, 50, 20},
		Enabled:     true,
	}
	questions := []domain.Question{
		{
			ID: "q1", QuizID: quiz.ID, Type: domain.TypeRadio, Prompt: "What is 2 + 2?", Enabled: true,
			Options: []domain.Option{
				{ID: "o1", Value: "3"},
				{ID: "o2", Value: "4", Correct: true},
				{ID: "o3", Value: "5"},
			},
		},
		{
			ID: "q2", QuizID: quiz.ID, Type: domain.TypeCheckbox, Prompt: "Select the even numbers", Enabled: true, PartialCredit: true,
			Options: []domain.Option{
				{ID: "o1", Value: "2", Correct: true},
				{ID: "o2", Value: "3"},
				{ID: "o3", Value: "4", Correct: true},
			},
		},
	}
	if err := store.PutQuiz(ctx, quiz); err != nil {
		log.Printf("seed quiz: %v", err)
	}
	for _, q := range questions {
		if err := store.PutQuestion(ctx, q); err != nil {
			log.Printf("seed question %s: %v", q.ID, err)
		}
	}
}
