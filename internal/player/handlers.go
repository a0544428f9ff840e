package player

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// Server is a player service: it accepts every invitation, answers choice
// calls through its strategy, and acknowledges notifications.
type Server struct {
	strategy Strategy

	mu       sync.RWMutex
	playerID string
}

func NewServer(strategy Strategy) *Server {
	return &Server{strategy: strategy}
}

// SetIdentity stores the id assigned at registration. Until then the player
// answers with an empty sender, which no referee will ever call anyway.
func (s *Server) SetIdentity(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playerID = playerID
}

func (s *Server) identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerID
}

func (s *Server) sender() string {
	return "player:" + s.identity()
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post(protocol.PathInvitation, s.handleInvitation)
	r.Post(protocol.PathChoose, s.handleChoose)
	r.Post(protocol.PathGameOver, s.handleGameOver)
	r.Post(protocol.PathNotify, s.handleNotify)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// handleInvitation always accepts. A registered player is available for every
// match it was scheduled into.
func (s *Server) handleInvitation(w http.ResponseWriter, r *http.Request) {
	var inv protocol.GameInvitation
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	log.WithFields(log.Fields{
		"match_id": inv.MatchID,
		"role":     inv.RoleInMatch,
		"opponent": inv.OpponentID,
	}).Info("Invitation accepted")

	writeJSON(w, protocol.InvitationAck{
		Envelope: protocol.Reply(inv.Envelope, protocol.TypeGameInvitation+"_ack", s.sender()),
		MatchID:  inv.MatchID,
		PlayerID: s.identity(),
		Accept:   true,
	})
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	var call protocol.ChooseParityCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	choice := s.strategy.ChooseParity(MatchContext{
		MatchID:    call.MatchID,
		OpponentID: call.Context.OpponentID,
		RoundID:    call.Context.RoundID,
	})
	log.WithFields(log.Fields{
		"match_id": call.MatchID,
		"choice":   string(choice),
		"strategy": s.strategy.Name(),
	}).Info("Parity chosen")

	writeJSON(w, protocol.ChoiceResponse{
		Envelope:     protocol.Reply(call.Envelope, protocol.TypeChooseParityCall+"_response", s.sender()),
		MatchID:      call.MatchID,
		PlayerID:     s.identity(),
		ParityChoice: choice,
	})
}

func (s *Server) handleGameOver(w http.ResponseWriter, r *http.Request) {
	var over protocol.GameOver
	if err := json.NewDecoder(r.Body).Decode(&over); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	log.WithFields(log.Fields{
		"match_id": over.MatchID,
		"status":   over.GameResult.Status,
		"winner":   over.GameResult.WinnerPlayerID,
	}).Info("Game over")

	writeJSON(w, protocol.Ack{
		Envelope:     protocol.Reply(over.Envelope, protocol.TypeGameOver+"_ack", s.sender()),
		Acknowledged: true,
	})
}

// handleNotify receives league broadcasts. The player only logs them; a
// smarter strategy could cache standings here.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var env protocol.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	log.WithFields(log.Fields{
		"message_type": env.MessageType,
		"sender":       env.Sender,
	}).Info("League notification")

	writeJSON(w, protocol.Ack{
		Envelope:     protocol.Reply(env, env.MessageType+"_ack", s.sender()),
		Acknowledged: true,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
