package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/config"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/player"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadPlayer(getenv("PLAYER_CONFIG", ""))
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if addr := os.Getenv("PLAYER_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if ep := os.Getenv("PLAYER_ENDPOINT"); ep != "" {
		cfg.Endpoint = ep
	}
	if url := os.Getenv("LEAGUE_URL"); url != "" {
		cfg.LeagueURL = url
	}
	if name := os.Getenv("PLAYER_NAME"); name != "" {
		cfg.DisplayName = name
	}
	if strat := os.Getenv("PLAYER_STRATEGY"); strat != "" {
		cfg.Strategy = strat
	}

	srv := player.NewServer(player.StrategyByName(cfg.Strategy))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/", srv.Routes())

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"name": cfg.DisplayName,
			"addr": cfg.ListenAddr,
		}).Info("Player listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Listen failed")
		}
	}()

	playerID := register(cfg)
	srv.SetIdentity(playerID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info("Player stopped")
}

func register(cfg config.Player) string {
	req := protocol.RegisterPlayerRequest{
		DisplayName: cfg.DisplayName,
		Endpoint:    cfg.Endpoint,
		GameTypes:   []string{protocol.GameType},
	}
	var lastErr error
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		var resp protocol.RegisterPlayerResponse
		lastErr = protocol.PostJSON(ctx, cfg.LeagueURL+protocol.PathRegisterPlayer, req, &resp)
		cancel()
		if lastErr == nil {
			log.WithFields(log.Fields{"player_id": resp.PlayerID}).Info("Registered with league manager")
			return resp.PlayerID
		}
		log.WithError(lastErr).Warnf("Register retry %d", i+1)
		time.Sleep(400 * time.Millisecond)
	}
	log.WithError(lastErr).Fatal("Failed to register with league manager")
	return ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
