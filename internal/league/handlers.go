package league

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/schedule"
)

// Server is the league manager's HTTP surface: agent registration, tournament
// control, result intake and standings queries.
type Server struct {
	leagueID string
	registry *Registry
	manager  *Manager
}

func NewServer(leagueID string, registry *Registry, manager *Manager) *Server {
	return &Server{leagueID: leagueID, registry: registry, manager: manager}
}

// Routes builds the router. Middleware is the caller's business.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post(protocol.PathRegisterPlayer, s.handleRegisterPlayer)
	r.Post(protocol.PathRegisterReferee, s.handleRegisterReferee)
	r.Post(protocol.PathReportResult, s.handleReportResult)
	r.Get(protocol.PathStandings, s.handleStandings)
	r.Get("/league/schedule", s.handleSchedule)
	r.Post("/league/start", s.handleStart)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.DisplayName == "" || req.Endpoint == "" {
		http.Error(w, "missing display_name/endpoint", http.StatusBadRequest)
		return
	}
	info, err := s.registry.RegisterPlayer(req.DisplayName, req.Endpoint)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.manager.AdmitPlayer(info.ID, info.DisplayName)
	writeJSON(w, http.StatusOK, protocol.RegisterPlayerResponse{
		PlayerID:  info.ID,
		AuthToken: info.AuthToken,
	})
}

func (s *Server) handleRegisterReferee(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRefereeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.DisplayName == "" || req.Endpoint == "" {
		http.Error(w, "missing display_name/endpoint", http.StatusBadRequest)
		return
	}
	info, err := s.registry.RegisterReferee(req.DisplayName, req.Endpoint)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, protocol.RegisterRefereeResponse{
		RefereeID: info.ID,
		AuthToken: info.AuthToken,
	})
}

func (s *Server) handleReportResult(w http.ResponseWriter, r *http.Request) {
	var report protocol.MatchResultReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	refereeID := agentIDFromSender(report.Sender)
	if !s.registry.ValidateToken(refereeID, report.AuthToken) {
		http.Error(w, "invalid auth token", http.StatusUnauthorized)
		return
	}
	if err := s.manager.HandleMatchResult(r.Context(), report); err != nil {
		log.WithFields(log.Fields{
			"match_id": report.MatchID,
			"error":    err.Error(),
		}).Warn("Rejected match result")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ack := protocol.Ack{
		Envelope:     protocol.Reply(report.Envelope, protocol.TypeMatchResultReport+"_ack", senderName),
		Acknowledged: true,
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleStandings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.StandingsResponse{Standings: s.manager.Standings()})
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	plan := s.manager.Schedule()
	if plan == nil {
		http.Error(w, "tournament not started", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleStart builds the schedule from the current registry and kicks off the
// tournament. The first round runs in the background; the response returns as
// soon as the plan exists so the caller is not held for a full round of play.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	players := s.registry.Players()
	referees := s.registry.Referees()

	playerIDs := make([]string, 0, len(players))
	for _, p := range players {
		playerIDs = append(playerIDs, p.ID)
	}
	refInfos := make([]schedule.RefereeInfo, 0, len(referees))
	for _, ref := range referees {
		refInfos = append(refInfos, schedule.RefereeInfo{RefereeID: ref.ID, Endpoint: ref.Endpoint})
	}

	plan, err := schedule.BuildSchedule(s.leagueID, playerIDs, refInfos)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err := s.manager.InitializeTournament(plan); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	go func() {
		ctx := context.Background()
		s.manager.BroadcastTournamentStart(ctx)
		if err := s.manager.StartRound(ctx, 1); err != nil {
			log.WithError(err).Error("Failed to start round 1")
		}
	}()

	writeJSON(w, http.StatusAccepted, struct {
		LeagueID     string `json:"league_id"`
		TotalRounds  int    `json:"total_rounds"`
		TotalMatches int    `json:"total_matches"`
	}{LeagueID: s.leagueID, TotalRounds: len(plan.Rounds), TotalMatches: plan.TotalMatches})
}

// agentIDFromSender extracts the registered id from a sender such as
// "referee:REF01".
func agentIDFromSender(sender string) string {
	if i := strings.LastIndex(sender, ":"); i >= 0 {
		return sender[i+1:]
	}
	return sender
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
