package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/infra/memory"
	pgstore "trivia-session-service/internal/infra/postgres"
	redisstore "trivia-session-service/internal/infra/redis"
	transport "trivia-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.TemplateLoader = memory.NewStaticTemplateLoader(memory.BuiltinTemplates())
	if pool != nil {
		loader = pgstore.NewTemplateLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var bank app.TemplateRepository
	if redisClient != nil {
		bank = redisstore.NewTemplateBank(redisClient, loader, bankTTL)
	} else {
		bank = memory.NewTemplateBank(loader, bankTTL)
	}

	var lobbies app.LobbyRepository
	if redisClient != nil {
		lobbies = redisstore.NewLobbyStore(redisClient, redisTTL)
	} else {
		lobbies = memory.NewLobbyStore()
	}

	var snapshots app.SnapshotStore
	if pool != nil {
		snapshots = pgstore.NewSnapshotStore(pool)
	}

	service := app.NewLobbyService(lobbies, bank, snapshots, gamePolicy(cfg))
	if err := service.Restore(ctx); err != nil {
		log.Printf("lobby restore failed: %v", err)
	}

	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go service.Run(runCtx)

	wsHandler := transport.NewWSHandler(service)
	lobbyHandler := transport.NewLobbyHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/lobbies", lobbyHandler.CreateLobby)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia session service on :%s", finalPort)
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

func gamePolicy(cfg config.Config) app.Policy {
	policy := app.DefaultPolicy()
	if cfg.Game.MinPlayers > 0 {
		policy.MinPlayers = cfg.Game.MinPlayers
	}
	if cfg.Game.BasePoints > 0 {
		policy.BasePoints = cfg.Game.BasePoints
	}
	if cfg.Game.SpeedBonusStep > 0 {
		policy.SpeedBonusStep = cfg.Game.SpeedBonusStep
	}
	policy.ForceStartGrace = config.TTLDuration(cfg.Game.ForceStartGrace, policy.ForceStartGrace)
	policy.LobbyIdleTTL = config.TTLDuration(cfg.Game.LobbyIdleTTL, policy.LobbyIdleTTL)
	return policy
}
