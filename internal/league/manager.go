package league

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/broadcast"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/schedule"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/standings"
)

// RoundStatus is a round's lifecycle state.
type RoundStatus string

const (
	RoundPending   RoundStatus = "PENDING"
	RoundAnnounced RoundStatus = "ANNOUNCED"
	RoundCompleted RoundStatus = "COMPLETED"
)

// Lifecycle errors. These indicate protocol or programming mistakes, not
// retryable conditions.
var (
	ErrNoTournament      = errors.New("league: no tournament initialized")
	ErrRoundNotFound     = errors.New("league: round does not exist")
	ErrRoundNotPending   = errors.New("league: round already started")
	ErrPriorRoundOpen    = errors.New("league: previous round not completed")
	ErrUnknownMatch      = errors.New("league: match not in round")
	ErrTournamentRunning = errors.New("league: tournament already initialized")
)

const senderName = "league:league_manager"

type roundState struct {
	matches   []schedule.Match
	completed map[string]bool
	status    RoundStatus
}

// Manager owns the Tournament aggregate: the full schedule, per-round
// completion tracking, the standings engine, and the broadcasts that move the
// tournament forward.
//
// All mutation goes through a single mutex, so racing result reports from
// different referees are applied one at a time, so a round completes exactly
// once and no update is lost. Network calls (broadcasts, referee dispatch)
// happen outside the lock.
type Manager struct {
	leagueID    string
	registry    *Registry
	engine      *standings.Engine
	dispatcher  *broadcast.Dispatcher
	store       *Store // optional; nil disables persistence
	autoAdvance bool

	mu           sync.Mutex
	plan         *schedule.Plan
	rounds       map[int]*roundState
	currentRound int
	totalRounds  int
}

// NewManager wires a lifecycle manager. store may be nil (no persistence).
// With autoAdvance set, completing a round immediately starts the next one.
func NewManager(leagueID string, registry *Registry, engine *standings.Engine, dispatcher *broadcast.Dispatcher, store *Store, autoAdvance bool) *Manager {
	return &Manager{
		leagueID:    leagueID,
		registry:    registry,
		engine:      engine,
		dispatcher:  dispatcher,
		store:       store,
		autoAdvance: autoAdvance,
		rounds:      make(map[int]*roundState),
	}
}

// AdmitPlayer creates the player's standing entry before any match is played.
func (m *Manager) AdmitPlayer(playerID, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine.AddPlayer(playerID, displayName)
}

// InitializeTournament installs the plan built by the scheduler. Rounds are
// created once, in full; they are never resharded afterward.
func (m *Manager) InitializeTournament(plan *schedule.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.plan != nil {
		return ErrTournamentRunning
	}
	m.plan = plan
	m.totalRounds = len(plan.Rounds)
	m.currentRound = 0
	for i, matches := range plan.Rounds {
		m.rounds[i+1] = &roundState{
			matches:   append([]schedule.Match(nil), matches...),
			completed: make(map[string]bool),
			status:    RoundPending,
		}
	}

	log.WithFields(log.Fields{
		"league_id":     m.leagueID,
		"total_rounds":  m.totalRounds,
		"total_matches": plan.TotalMatches,
	}).Info("Tournament initialized")

	if m.store != nil {
		if err := m.store.SaveSchedule(plan); err != nil {
			return err
		}
	}
	return nil
}

// BroadcastTournamentStart announces the tournament to every player.
func (m *Manager) BroadcastTournamentStart(ctx context.Context) *broadcast.DeliveryReport {
	m.mu.Lock()
	msg := protocol.TournamentStart{
		Envelope:     protocol.NewEnvelope(protocol.TypeTournamentStart, senderName),
		LeagueID:     m.leagueID,
		TotalRounds:  m.totalRounds,
		TotalMatches: m.totalMatchesLocked(),
		PlayerCount:  len(m.registry.Players()),
	}
	m.mu.Unlock()
	return m.dispatcher.Broadcast(ctx, m.playerRecipients(), msg)
}

// StartRound announces round n to all players and dispatches each of its
// matches to the assigned referee. Legal only when round n is PENDING and
// every earlier round is COMPLETED: round N+1 is never announced before
// round N closes.
func (m *Manager) StartRound(ctx context.Context, n int) error {
	m.mu.Lock()
	if m.plan == nil {
		m.mu.Unlock()
		return ErrNoTournament
	}
	rs, ok := m.rounds[n]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: round %d", ErrRoundNotFound, n)
	}
	if rs.status != RoundPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: round %d is %s", ErrRoundNotPending, n, rs.status)
	}
	for prev := 1; prev < n; prev++ {
		if m.rounds[prev].status != RoundCompleted {
			m.mu.Unlock()
			return fmt.Errorf("%w: round %d", ErrPriorRoundOpen, prev)
		}
	}

	rs.status = RoundAnnounced
	m.currentRound = n
	for i := range rs.matches {
		rs.matches[i].Status = schedule.MatchInProgress
	}

	announcement := m.buildAnnouncementLocked(n, rs)
	assignments := m.buildAssignmentsLocked(n, rs)
	m.mu.Unlock()

	report := m.dispatcher.Broadcast(ctx, m.playerRecipients(), announcement)
	log.WithFields(log.Fields{
		"round":     n,
		"matches":   len(announcement.Matches),
		"delivered": fmt.Sprintf("%d/%d", report.Successful, report.Total),
	}).Info("Round started and announced")

	m.dispatchAssignments(ctx, assignments)
	m.persist()
	return nil
}

// HandleMatchResult applies one referee report: records the outcome, marks
// the match complete, and, when the report closes the round, broadcasts
// round completion, updated standings, and, after the final round, the
// tournament end. Duplicate reports for an already-completed match are
// ignored so a round cannot complete twice.
func (m *Manager) HandleMatchResult(ctx context.Context, report protocol.MatchResultReport) error {
	m.mu.Lock()
	if m.plan == nil {
		m.mu.Unlock()
		return ErrNoTournament
	}
	rs, ok := m.rounds[report.RoundID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: round %d", ErrRoundNotFound, report.RoundID)
	}
	match := findMatch(rs.matches, report.MatchID)
	if match == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s in round %d", ErrUnknownMatch, report.MatchID, report.RoundID)
	}
	if rs.completed[report.MatchID] {
		m.mu.Unlock()
		log.WithFields(log.Fields{"match_id": report.MatchID}).Warn("Duplicate match result ignored")
		return nil
	}

	if err := m.applyResultLocked(match, report); err != nil {
		m.mu.Unlock()
		return err
	}

	rs.completed[report.MatchID] = true
	roundDone := len(rs.completed) == len(rs.matches)
	log.WithFields(log.Fields{
		"match_id":  report.MatchID,
		"round":     report.RoundID,
		"completed": fmt.Sprintf("%d/%d", len(rs.completed), len(rs.matches)),
	}).Info("Match completed")

	if !roundDone {
		m.mu.Unlock()
		m.persist()
		return nil
	}

	rs.status = RoundCompleted
	completion, update := m.buildRoundCloseLocked(report.RoundID, rs)
	tournamentDone := m.isCompleteLocked()
	next := 0
	if completion.NextRoundID != nil {
		next = *completion.NextRoundID
	}
	m.mu.Unlock()

	recipients := m.playerRecipients()
	closeReport := m.dispatcher.Broadcast(ctx, recipients, completion)
	m.dispatcher.Broadcast(ctx, recipients, update)
	log.WithFields(log.Fields{
		"round":     report.RoundID,
		"delivered": fmt.Sprintf("%d/%d", closeReport.Successful, closeReport.Total),
	}).Info("Round completed and broadcast")

	m.persist()

	if tournamentDone {
		m.BroadcastTournamentEnd(ctx)
		return nil
	}
	if m.autoAdvance && next > 0 {
		return m.StartRound(ctx, next)
	}
	return nil
}

// IsTournamentComplete reports whether the final round has been reached and
// every round is COMPLETED.
func (m *Manager) IsTournamentComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isCompleteLocked()
}

// CurrentRound returns the most recently announced round, 0 before round 1.
func (m *Manager) CurrentRound() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRound
}

// Schedule returns a snapshot of the plan with current match statuses, or
// nil before InitializeTournament.
func (m *Manager) Schedule() *schedule.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plan == nil {
		return nil
	}
	return m.snapshotPlanLocked()
}

// Standings returns the current ranked leaderboard in wire form.
func (m *Manager) Standings() []protocol.StandingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Entries()
}

// BroadcastTournamentEnd computes final standings, determines the champion,
// and broadcasts the tournament-end message with the full final table.
func (m *Manager) BroadcastTournamentEnd(ctx context.Context) *broadcast.DeliveryReport {
	m.mu.Lock()
	entries := m.engine.Entries()
	var champion *protocol.StandingEntry
	if len(entries) > 0 {
		champion = &entries[0]
	}
	msg := protocol.TournamentEnd{
		Envelope:       protocol.NewEnvelope(protocol.TypeTournamentEnd, senderName),
		LeagueID:       m.leagueID,
		TotalRounds:    m.totalRounds,
		TotalMatches:   m.totalMatchesLocked(),
		Champion:       champion,
		FinalStandings: entries,
	}
	m.mu.Unlock()

	report := m.dispatcher.Broadcast(ctx, m.playerRecipients(), msg)
	championID := ""
	if champion != nil {
		championID = champion.PlayerID
	}
	log.WithFields(log.Fields{
		"champion":  championID,
		"delivered": fmt.Sprintf("%d/%d", report.Successful, report.Total),
	}).Info("Tournament end broadcast")
	return report
}

func (m *Manager) applyResultLocked(match *schedule.Match, report protocol.MatchResultReport) error {
	if report.Result.Status == protocol.StatusAborted {
		match.Status = schedule.MatchAborted
		log.WithFields(log.Fields{
			"match_id": report.MatchID,
			"reason":   report.Result.Reason,
		}).Warn("Match aborted")
		return m.engine.Tracker().Record(
			report.MatchID, match.PlayerAID, match.PlayerBID, "", protocol.StatusAborted)
	}

	var winner *string
	if report.Result.Winner != "" {
		w := report.Result.Winner
		winner = &w
	}
	if err := m.engine.RecordMatchResult(report.MatchID, match.PlayerAID, match.PlayerBID, winner); err != nil {
		return err
	}
	match.Status = schedule.MatchCompleted
	return nil
}

func (m *Manager) buildAnnouncementLocked(n int, rs *roundState) protocol.RoundAnnouncement {
	announced := make([]protocol.AnnouncedMatch, 0, len(rs.matches))
	for _, match := range rs.matches {
		announced = append(announced, protocol.AnnouncedMatch{
			MatchID:         match.MatchID,
			GameType:        protocol.GameType,
			PlayerAID:       match.PlayerAID,
			PlayerBID:       match.PlayerBID,
			RefereeID:       match.RefereeID,
			RefereeEndpoint: match.RefereeEndpoint,
		})
	}
	return protocol.RoundAnnouncement{
		Envelope: protocol.NewEnvelope(protocol.TypeRoundAnnouncement, senderName),
		LeagueID: m.leagueID,
		RoundID:  n,
		Matches:  announced,
	}
}

type refereeDispatch struct {
	endpoint   string
	refereeID  string
	assignment protocol.MatchAssignment
}

func (m *Manager) buildAssignmentsLocked(n int, rs *roundState) []refereeDispatch {
	out := make([]refereeDispatch, 0, len(rs.matches))
	for _, match := range rs.matches {
		playerA, okA := m.registry.PlayerByID(match.PlayerAID)
		playerB, okB := m.registry.PlayerByID(match.PlayerBID)
		if !okA || !okB {
			log.WithFields(log.Fields{"match_id": match.MatchID}).
				Error("Player endpoint missing, match cannot be dispatched")
			continue
		}
		out = append(out, refereeDispatch{
			endpoint:  match.RefereeEndpoint,
			refereeID: match.RefereeID,
			assignment: protocol.MatchAssignment{
				Envelope:        protocol.NewEnvelope(protocol.TypeMatchAssignment, senderName),
				LeagueID:        m.leagueID,
				RoundID:         n,
				MatchID:         match.MatchID,
				PlayerAID:       match.PlayerAID,
				PlayerBID:       match.PlayerBID,
				PlayerAEndpoint: playerA.Endpoint,
				PlayerBEndpoint: playerB.Endpoint,
			},
		})
	}
	return out
}

func (m *Manager) dispatchAssignments(ctx context.Context, assignments []refereeDispatch) {
	var wg sync.WaitGroup
	for _, d := range assignments {
		wg.Add(1)
		go func(d refereeDispatch) {
			defer wg.Done()
			recipient := broadcast.Recipient{
				ID:       d.refereeID,
				Endpoint: d.endpoint + protocol.PathAssignMatch,
			}
			if err := m.dispatcher.SendWithRetry(ctx, recipient, d.assignment); err != nil {
				log.WithFields(log.Fields{
					"match_id":   d.assignment.MatchID,
					"referee_id": d.refereeID,
					"error":      err.Error(),
				}).Error("Match assignment delivery failed")
			}
		}(d)
	}
	wg.Wait()
}

func (m *Manager) buildRoundCloseLocked(n int, rs *roundState) (protocol.RoundCompleted, protocol.StandingsUpdate) {
	var next *int
	if n < m.totalRounds {
		nr := n + 1
		next = &nr
	}
	completion := protocol.RoundCompleted{
		Envelope:         protocol.NewEnvelope(protocol.TypeRoundCompleted, senderName),
		LeagueID:         m.leagueID,
		RoundID:          n,
		MatchesCompleted: len(rs.matches),
		NextRoundID:      next,
	}
	update := protocol.StandingsUpdate{
		Envelope:  protocol.NewEnvelope(protocol.TypeStandingsUpdate, senderName),
		LeagueID:  m.leagueID,
		RoundID:   n,
		Standings: m.engine.Entries(),
	}
	return completion, update
}

func (m *Manager) isCompleteLocked() bool {
	if m.plan == nil || m.currentRound != m.totalRounds {
		return false
	}
	for _, rs := range m.rounds {
		if rs.status != RoundCompleted {
			return false
		}
	}
	return true
}

func (m *Manager) totalMatchesLocked() int {
	if m.plan == nil {
		return 0
	}
	return m.plan.TotalMatches
}

func (m *Manager) playerRecipients() []broadcast.Recipient {
	players := m.registry.Players()
	out := make([]broadcast.Recipient, 0, len(players))
	for _, p := range players {
		out = append(out, broadcast.Recipient{ID: p.ID, Endpoint: p.Endpoint + protocol.PathNotify})
	}
	return out
}

// persist flushes standings, results and the schedule with current match
// statuses. Failures are logged, never fatal: persistence is best-effort
// bookkeeping, the in-memory aggregate stays authoritative.
func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	table := m.engine.Standings()
	results := m.engine.Tracker().Matches()
	plan := m.snapshotPlanLocked()
	m.mu.Unlock()

	if err := m.store.SaveStandings(table); err != nil {
		log.WithError(err).Error("Failed to persist standings")
	}
	if err := m.store.SaveResults(results); err != nil {
		log.WithError(err).Error("Failed to persist results")
	}
	if err := m.store.SaveSchedule(plan); err != nil {
		log.WithError(err).Error("Failed to persist schedule")
	}
}

func (m *Manager) snapshotPlanLocked() *schedule.Plan {
	rounds := make([][]schedule.Match, 0, m.totalRounds)
	for n := 1; n <= m.totalRounds; n++ {
		rounds = append(rounds, append([]schedule.Match(nil), m.rounds[n].matches...))
	}
	return &schedule.Plan{
		LeagueID:     m.leagueID,
		Rounds:       rounds,
		TotalMatches: m.plan.TotalMatches,
	}
}

func findMatch(matches []schedule.Match, matchID string) *schedule.Match {
	for i := range matches {
		if matches[i].MatchID == matchID {
			return &matches[i]
		}
	}
	return nil
}
