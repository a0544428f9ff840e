// Package referee runs even/odd matches on behalf of the league manager: it
// invites both players, collects their parity choices, draws the number,
// decides the outcome and reports it back.
package referee

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/broadcast"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/game"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

const (
	DefaultInvitationTimeout = 5 * time.Second
	DefaultChoiceTimeout     = 30 * time.Second
)

// Config identifies this referee and tells it where to report results.
type Config struct {
	RefereeID         string
	AuthToken         string
	LeagueEndpoint    string
	InvitationTimeout time.Duration
	ChoiceTimeout     time.Duration
}

// Orchestrator drives matches through the five phases of the even/odd game:
// invite, collect choices, draw, evaluate, notify and report. Each match runs
// on its own goroutine; sessions isolate per-match state so concurrent
// matches never share anything but the Orchestrator's immutable config.
type Orchestrator struct {
	cfg        Config
	sessions   *SessionRegistry
	dispatcher *broadcast.Dispatcher
}

func NewOrchestrator(cfg Config, sessions *SessionRegistry, dispatcher *broadcast.Dispatcher) *Orchestrator {
	if cfg.InvitationTimeout <= 0 {
		cfg.InvitationTimeout = DefaultInvitationTimeout
	}
	if cfg.ChoiceTimeout <= 0 {
		cfg.ChoiceTimeout = DefaultChoiceTimeout
	}
	return &Orchestrator{cfg: cfg, sessions: sessions, dispatcher: dispatcher}
}

func (o *Orchestrator) sender() string {
	return "referee:" + o.cfg.RefereeID
}

// RunMatch plays one assigned match to completion. Any phase failure aborts
// the match; an abort is still reported to the league manager so the round
// can close.
func (o *Orchestrator) RunMatch(ctx context.Context, a protocol.MatchAssignment) {
	session, err := o.sessions.Create(a)
	if err != nil {
		log.WithFields(log.Fields{"match_id": a.MatchID, "error": err.Error()}).
			Warn("Duplicate match assignment ignored")
		return
	}
	defer o.sessions.Close(a.MatchID)

	logger := log.WithFields(log.Fields{
		"match_id": a.MatchID,
		"round":    a.RoundID,
		"players":  fmt.Sprintf("%s vs %s", a.PlayerAID, a.PlayerBID),
	})
	logger.Info("Match started")

	if err := o.invitePlayers(ctx, a); err != nil {
		o.abortMatch(ctx, session, a, fmt.Sprintf("invitation failed: %v", err))
		return
	}
	if err := session.Transition(game.StateCollectingChoices); err != nil {
		o.abortMatch(ctx, session, a, err.Error())
		return
	}

	choices, err := o.collectChoices(ctx, a)
	if err != nil {
		o.abortMatch(ctx, session, a, fmt.Sprintf("choice collection failed: %v", err))
		return
	}
	if err := session.Transition(game.StateDrawingNumber); err != nil {
		o.abortMatch(ctx, session, a, err.Error())
		return
	}

	drawn := game.DrawNumber()
	if err := session.Transition(game.StateEvaluating); err != nil {
		o.abortMatch(ctx, session, a, err.Error())
		return
	}
	result := game.DetermineWinner(drawn, a.PlayerAID, a.PlayerBID, choices)

	o.notifyPlayers(ctx, a, result)

	if err := session.Transition(game.StateFinished); err != nil {
		logger.WithError(err).Error("Session could not finish")
	}
	logger.WithFields(log.Fields{
		"drawn_number": drawn,
		"winner":       result.WinnerPlayerID,
	}).Info("Match finished")

	o.reportResult(ctx, a, protocol.ReportedResult{
		Status: result.Status,
		Winner: result.WinnerPlayerID,
		Score:  result.Scores,
		Details: &protocol.ResultDetails{
			DrawnNumber: result.DrawnNumber,
			Choices:     result.Choices,
		},
	})
}

// invitePlayers sends both GAME_INVITATION calls concurrently. A declined or
// unanswered invitation fails the whole phase.
func (o *Orchestrator) invitePlayers(ctx context.Context, a protocol.MatchAssignment) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.InvitationTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.invite(ctx, a, a.PlayerAID, a.PlayerAEndpoint, "PLAYER_A", a.PlayerBID)
	})
	g.Go(func() error {
		return o.invite(ctx, a, a.PlayerBID, a.PlayerBEndpoint, "PLAYER_B", a.PlayerAID)
	})
	return g.Wait()
}

func (o *Orchestrator) invite(ctx context.Context, a protocol.MatchAssignment, playerID, endpoint, role, opponentID string) error {
	inv := protocol.GameInvitation{
		Envelope:    protocol.NewEnvelope(protocol.TypeGameInvitation, o.sender()),
		LeagueID:    a.LeagueID,
		RoundID:     a.RoundID,
		MatchID:     a.MatchID,
		GameType:    protocol.GameType,
		RoleInMatch: role,
		OpponentID:  opponentID,
	}
	var ack protocol.InvitationAck
	if err := protocol.PostJSON(ctx, endpoint+protocol.PathInvitation, inv, &ack); err != nil {
		return fmt.Errorf("player %s: %w", playerID, err)
	}
	if !ack.Accept {
		return fmt.Errorf("player %s declined", playerID)
	}
	return nil
}

// collectChoices asks both players for their parity choice concurrently and
// validates each response. An invalid symbol is a protocol violation, never
// coerced to a default.
func (o *Orchestrator) collectChoices(ctx context.Context, a protocol.MatchAssignment) (map[string]protocol.Parity, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ChoiceTimeout)
	defer cancel()
	deadline := time.Now().UTC().Add(o.cfg.ChoiceTimeout).Format(time.RFC3339)

	choices := make(map[string]protocol.Parity, 2)
	var choiceA, choiceB protocol.Parity

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		choiceA, err = o.askChoice(ctx, a, a.PlayerAID, a.PlayerAEndpoint, a.PlayerBID, deadline)
		return err
	})
	g.Go(func() error {
		var err error
		choiceB, err = o.askChoice(ctx, a, a.PlayerBID, a.PlayerBEndpoint, a.PlayerAID, deadline)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	choices[a.PlayerAID] = choiceA
	choices[a.PlayerBID] = choiceB
	return choices, nil
}

func (o *Orchestrator) askChoice(ctx context.Context, a protocol.MatchAssignment, playerID, endpoint, opponentID, deadline string) (protocol.Parity, error) {
	call := protocol.ChooseParityCall{
		Envelope: protocol.NewEnvelope(protocol.TypeChooseParityCall, o.sender()),
		MatchID:  a.MatchID,
		PlayerID: playerID,
		GameType: protocol.GameType,
		Context: protocol.ChoiceContext{
			OpponentID: opponentID,
			RoundID:    a.RoundID,
		},
		Deadline: deadline,
	}
	var resp protocol.ChoiceResponse
	if err := protocol.PostJSON(ctx, endpoint+protocol.PathChoose, call, &resp); err != nil {
		return "", fmt.Errorf("player %s: %w", playerID, err)
	}
	if !resp.ParityChoice.Valid() {
		return "", fmt.Errorf("player %s sent invalid parity %q", playerID, resp.ParityChoice)
	}
	return resp.ParityChoice, nil
}

// notifyPlayers delivers GAME_OVER to both players. Fire and forget: a player
// that cannot take the result does not hold up reporting to the league.
func (o *Orchestrator) notifyPlayers(ctx context.Context, a protocol.MatchAssignment, result protocol.GameResult) {
	targets := []struct{ id, endpoint string }{
		{a.PlayerAID, a.PlayerAEndpoint},
		{a.PlayerBID, a.PlayerBEndpoint},
	}
	for _, t := range targets {
		msg := protocol.GameOver{
			Envelope:   protocol.NewEnvelope(protocol.TypeGameOver, o.sender()),
			MatchID:    a.MatchID,
			GameType:   protocol.GameType,
			GameResult: result,
		}
		var ack protocol.Ack
		if err := protocol.PostJSON(ctx, t.endpoint+protocol.PathGameOver, msg, &ack); err != nil {
			log.WithFields(log.Fields{
				"match_id":  a.MatchID,
				"player_id": t.id,
				"error":     err.Error(),
			}).Warn("Game over notification failed")
		}
	}
}

// abortMatch moves the session to aborted, tells both players, and reports
// the abort to the league manager so the round closes without this match.
func (o *Orchestrator) abortMatch(ctx context.Context, session *game.Session, a protocol.MatchAssignment, reason string) {
	log.WithFields(log.Fields{
		"match_id": a.MatchID,
		"state":    string(session.State()),
		"reason":   reason,
	}).Warn("Match aborted")

	if session.CanTransition(game.StateAborted) {
		if err := session.Transition(game.StateAborted); err != nil {
			log.WithError(err).Error("Abort transition failed")
		}
	}

	o.notifyPlayers(ctx, a, protocol.GameResult{
		Status: protocol.StatusAborted,
		Reason: reason,
	})
	o.reportResult(ctx, a, protocol.ReportedResult{
		Status: protocol.StatusAborted,
		Reason: reason,
	})
}

// reportResult delivers the MatchResultReport to the league manager with the
// dispatcher's retry policy. This is the one delivery that must not be
// dropped silently; a final failure is logged loudly.
func (o *Orchestrator) reportResult(ctx context.Context, a protocol.MatchAssignment, result protocol.ReportedResult) {
	env := protocol.NewEnvelope(protocol.TypeMatchResultReport, o.sender())
	env.AuthToken = o.cfg.AuthToken
	report := protocol.MatchResultReport{
		Envelope: env,
		LeagueID: a.LeagueID,
		RoundID:  a.RoundID,
		MatchID:  a.MatchID,
		GameType: protocol.GameType,
		Result:   result,
	}
	recipient := broadcast.Recipient{
		ID:       "league_manager",
		Endpoint: o.cfg.LeagueEndpoint + protocol.PathReportResult,
	}
	if err := o.dispatcher.SendWithRetry(ctx, recipient, report); err != nil {
		log.WithFields(log.Fields{
			"match_id": a.MatchID,
			"error":    err.Error(),
		}).Error("Match result report failed after retries")
	}
}
