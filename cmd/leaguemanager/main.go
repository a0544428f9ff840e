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

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/broadcast"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/config"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/health"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/league"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/standings"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadLeague(getenv("LEAGUE_CONFIG", ""))
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if addr := os.Getenv("LEAGUE_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if id := os.Getenv("LEAGUE_ID"); id != "" {
		cfg.LeagueID = id
	}

	registry := league.NewRegistry(cfg.MaxPlayers, cfg.MaxReferees)
	engine := standings.NewEngine()
	dispatcher := broadcast.NewDispatcher(cfg.BroadcastTimeout(), cfg.BroadcastMaxRetries)

	store, err := league.NewStore(cfg.DataDir, cfg.LeagueID)
	if err != nil {
		log.WithError(err).Fatal("Failed to open data store")
	}

	manager := league.NewManager(cfg.LeagueID, registry, engine, dispatcher, store, cfg.AutoAdvance)
	srv := league.NewServer(cfg.LeagueID, registry, manager)

	monitor := health.NewMonitor(cfg.HealthInterval())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Start(ctx, func() []health.Agent {
		var agents []health.Agent
		for _, p := range registry.Players() {
			agents = append(agents, health.Agent{ID: p.ID, Endpoint: p.Endpoint})
		}
		for _, ref := range registry.Referees() {
			agents = append(agents, health.Agent{ID: ref.ID, Endpoint: ref.Endpoint})
		}
		return agents
	})
	go consumeHealthEvents(monitor.Events())

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
			"league_id": cfg.LeagueID,
			"addr":      cfg.ListenAddr,
		}).Info("League manager listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	monitor.Stop()
	log.Info("League manager stopped")
}

// consumeHealthEvents logs agent status transitions. An unhealthy referee or
// player does not stop the tournament; matches against it will abort and the
// rounds still close.
func consumeHealthEvents(events <-chan health.Event) {
	for ev := range events {
		entry := log.WithFields(log.Fields{
			"agent_id": ev.AgentID,
			"status":   ev.Status,
			"failures": ev.Failures,
		})
		if ev.Status == health.StatusUnhealthy {
			entry.Warn("Agent became unhealthy")
		} else {
			entry.Info("Agent recovered")
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
