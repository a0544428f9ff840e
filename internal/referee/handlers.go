package referee

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// Server exposes the referee's HTTP surface. The only real operation is match
// assignment; everything else the referee does is outbound.
type Server struct {
	orchestrator *Orchestrator
}

func NewServer(orchestrator *Orchestrator) *Server {
	return &Server{orchestrator: orchestrator}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post(protocol.PathAssignMatch, s.handleAssign)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// handleAssign acknowledges the assignment immediately and runs the match in
// the background. The league manager's dispatch call must not block for the
// length of a game, only for the ack.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var assignment protocol.MatchAssignment
	if err := json.NewDecoder(r.Body).Decode(&assignment); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if assignment.MatchID == "" || assignment.PlayerAEndpoint == "" || assignment.PlayerBEndpoint == "" {
		http.Error(w, "missing match_id/player endpoints", http.StatusBadRequest)
		return
	}

	go s.orchestrator.RunMatch(context.Background(), assignment)

	ack := protocol.Ack{
		Envelope:     protocol.Reply(assignment.Envelope, protocol.TypeMatchAssignment+"_ack", s.orchestrator.sender()),
		Acknowledged: true,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ack)
}
