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
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/referee"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadReferee(getenv("REFEREE_CONFIG", ""))
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if addr := os.Getenv("REFEREE_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if ep := os.Getenv("REFEREE_ENDPOINT"); ep != "" {
		cfg.Endpoint = ep
	}
	if url := os.Getenv("LEAGUE_URL"); url != "" {
		cfg.LeagueURL = url
	}
	if name := os.Getenv("REFEREE_NAME"); name != "" {
		cfg.DisplayName = name
	}

	refereeID, token := register(cfg)

	sessions := referee.NewSessionRegistry()
	dispatcher := broadcast.NewDispatcher(cfg.ReportTimeout(), cfg.ReportMaxRetries)
	orchestrator := referee.NewOrchestrator(referee.Config{
		RefereeID:         refereeID,
		AuthToken:         token,
		LeagueEndpoint:    cfg.LeagueURL,
		InvitationTimeout: cfg.InvitationTimeout(),
		ChoiceTimeout:     cfg.ChoiceTimeout(),
	}, sessions, dispatcher)
	srv := referee.NewServer(orchestrator)

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
			"referee_id": refereeID,
			"addr":       cfg.ListenAddr,
		}).Info("Referee listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info("Referee stopped")
}

// register enrolls with the league manager, retrying with a fixed backoff so
// the referee can start before the league manager does.
func register(cfg config.Referee) (string, string) {
	req := protocol.RegisterRefereeRequest{
		DisplayName: cfg.DisplayName,
		Endpoint:    cfg.Endpoint,
		GameTypes:   []string{protocol.GameType},
	}
	var lastErr error
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		var resp protocol.RegisterRefereeResponse
		lastErr = protocol.PostJSON(ctx, cfg.LeagueURL+protocol.PathRegisterReferee, req, &resp)
		cancel()
		if lastErr == nil {
			log.WithFields(log.Fields{"referee_id": resp.RefereeID}).Info("Registered with league manager")
			return resp.RefereeID, resp.AuthToken
		}
		log.WithError(lastErr).Warnf("Register retry %d", i+1)
		time.Sleep(400 * time.Millisecond)
	}
	log.WithError(lastErr).Fatal("Failed to register with league manager")
	return "", ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
