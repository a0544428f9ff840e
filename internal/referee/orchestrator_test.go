package referee

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/broadcast"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// fakePlayer is a minimal player service for orchestrator tests.
type fakePlayer struct {
	id         string
	choice     protocol.Parity
	declineInv bool
	failInv    bool
	chooseLag  time.Duration
	srv        *httptest.Server
}

func newFakePlayer(t *testing.T, id string, choice protocol.Parity) *fakePlayer {
	t.Helper()
	p := &fakePlayer{id: id, choice: choice}
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.PathInvitation, func(w http.ResponseWriter, r *http.Request) {
		if p.failInv {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var inv protocol.GameInvitation
		_ = json.NewDecoder(r.Body).Decode(&inv)
		_ = json.NewEncoder(w).Encode(protocol.InvitationAck{
			Envelope: protocol.Reply(inv.Envelope, "invitation_ack", "player:"+p.id),
			MatchID:  inv.MatchID,
			PlayerID: p.id,
			Accept:   !p.declineInv,
		})
	})
	mux.HandleFunc(protocol.PathChoose, func(w http.ResponseWriter, r *http.Request) {
		if p.chooseLag > 0 {
			time.Sleep(p.chooseLag)
		}
		var call protocol.ChooseParityCall
		_ = json.NewDecoder(r.Body).Decode(&call)
		_ = json.NewEncoder(w).Encode(protocol.ChoiceResponse{
			Envelope:     protocol.Reply(call.Envelope, "choice_response", "player:"+p.id),
			MatchID:      call.MatchID,
			PlayerID:     p.id,
			ParityChoice: p.choice,
		})
	})
	mux.HandleFunc(protocol.PathGameOver, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocol.Ack{Acknowledged: true})
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

// fakeLeague records the result reports the orchestrator delivers.
func fakeLeague(t *testing.T) (*httptest.Server, <-chan protocol.MatchResultReport) {
	t.Helper()
	reports := make(chan protocol.MatchResultReport, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != protocol.PathReportResult {
			http.NotFound(w, r)
			return
		}
		var report protocol.MatchResultReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
		reports <- report
		_ = json.NewEncoder(w).Encode(protocol.Ack{Acknowledged: true})
	}))
	t.Cleanup(srv.Close)
	return srv, reports
}

func newTestOrchestrator(t *testing.T, leagueURL string) (*Orchestrator, *SessionRegistry) {
	t.Helper()
	sessions := NewSessionRegistry()
	o := NewOrchestrator(Config{
		RefereeID:         "REF01",
		AuthToken:         "tok_ref01_testtoken",
		LeagueEndpoint:    leagueURL,
		InvitationTimeout: 2 * time.Second,
		ChoiceTimeout:     2 * time.Second,
	}, sessions, broadcast.NewDispatcher(time.Second, 0))
	return o, sessions
}

func assignment(a, b *fakePlayer) protocol.MatchAssignment {
	return protocol.MatchAssignment{
		Envelope:        protocol.NewEnvelope(protocol.TypeMatchAssignment, "league:league_manager"),
		LeagueID:        "L1",
		RoundID:         1,
		MatchID:         "L1_R1_M001",
		PlayerAID:       a.id,
		PlayerBID:       b.id,
		PlayerAEndpoint: a.srv.URL,
		PlayerBEndpoint: b.srv.URL,
	}
}

func awaitReport(t *testing.T, reports <-chan protocol.MatchResultReport) protocol.MatchResultReport {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for match result report")
		return protocol.MatchResultReport{}
	}
}

func TestRunMatchHappyPath(t *testing.T) {
	league, reports := fakeLeague(t)
	playerA := newFakePlayer(t, "P01", protocol.ParityEven)
	playerB := newFakePlayer(t, "P02", protocol.ParityOdd)
	o, sessions := newTestOrchestrator(t, league.URL)

	o.RunMatch(context.Background(), assignment(playerA, playerB))

	report := awaitReport(t, reports)
	assert.Equal(t, "L1_R1_M001", report.MatchID)
	assert.Equal(t, 1, report.RoundID)
	assert.Equal(t, protocol.StatusWin, report.Result.Status)
	assert.Equal(t, "tok_ref01_testtoken", report.AuthToken)
	assert.Equal(t, "referee:REF01", report.Sender)

	// Opposite choices mean exactly one player matched the draw.
	require.NotNil(t, report.Result.Details)
	drawn := report.Result.Details.DrawnNumber
	require.GreaterOrEqual(t, drawn, 1)
	require.LessOrEqual(t, drawn, 10)
	wantWinner := "P02"
	if drawn%2 == 0 {
		wantWinner = "P01"
	}
	assert.Equal(t, wantWinner, report.Result.Winner)
	assert.Equal(t, 3, report.Result.Score[wantWinner])

	// Session is cleaned up once the match is over.
	assert.Equal(t, 0, sessions.Active())
}

// TestRunMatchSameChoice pins the inherited first-listed-wins behavior when
// both players pick the symbol that matches the draw.
func TestRunMatchSameChoice(t *testing.T) {
	league, reports := fakeLeague(t)
	playerA := newFakePlayer(t, "P01", protocol.ParityEven)
	playerB := newFakePlayer(t, "P02", protocol.ParityEven)
	o, _ := newTestOrchestrator(t, league.URL)

	o.RunMatch(context.Background(), assignment(playerA, playerB))

	report := awaitReport(t, reports)
	drawn := report.Result.Details.DrawnNumber
	if drawn%2 == 0 {
		assert.Equal(t, protocol.StatusWin, report.Result.Status)
		assert.Equal(t, "P01", report.Result.Winner, "first-listed player takes a shared correct choice")
	} else {
		assert.Equal(t, protocol.StatusTie, report.Result.Status)
		assert.Empty(t, report.Result.Winner)
	}
}

func TestRunMatchInvitationDeclinedAborts(t *testing.T) {
	league, reports := fakeLeague(t)
	playerA := newFakePlayer(t, "P01", protocol.ParityEven)
	playerB := newFakePlayer(t, "P02", protocol.ParityOdd)
	playerB.declineInv = true
	o, _ := newTestOrchestrator(t, league.URL)

	o.RunMatch(context.Background(), assignment(playerA, playerB))

	report := awaitReport(t, reports)
	assert.Equal(t, protocol.StatusAborted, report.Result.Status)
	assert.Contains(t, report.Result.Reason, "invitation")
	assert.Empty(t, report.Result.Winner)
}

func TestRunMatchInvitationErrorAborts(t *testing.T) {
	league, reports := fakeLeague(t)
	playerA := newFakePlayer(t, "P01", protocol.ParityEven)
	playerB := newFakePlayer(t, "P02", protocol.ParityOdd)
	playerB.failInv = true
	o, _ := newTestOrchestrator(t, league.URL)

	o.RunMatch(context.Background(), assignment(playerA, playerB))

	report := awaitReport(t, reports)
	assert.Equal(t, protocol.StatusAborted, report.Result.Status)
}

// TestRunMatchChoiceTimeoutAborts: a player that never answers the choice
// call within the timeout aborts the match, and the abort is still reported.
func TestRunMatchChoiceTimeoutAborts(t *testing.T) {
	league, reports := fakeLeague(t)
	playerA := newFakePlayer(t, "P01", protocol.ParityEven)
	playerB := newFakePlayer(t, "P02", protocol.ParityOdd)
	playerB.chooseLag = time.Second

	sessions := NewSessionRegistry()
	o := NewOrchestrator(Config{
		RefereeID:         "REF01",
		AuthToken:         "tok_ref01_testtoken",
		LeagueEndpoint:    league.URL,
		InvitationTimeout: 2 * time.Second,
		ChoiceTimeout:     100 * time.Millisecond,
	}, sessions, broadcast.NewDispatcher(time.Second, 0))

	o.RunMatch(context.Background(), assignment(playerA, playerB))

	report := awaitReport(t, reports)
	assert.Equal(t, protocol.StatusAborted, report.Result.Status)
	assert.Contains(t, report.Result.Reason, "choice")
}

func TestDuplicateAssignmentIgnored(t *testing.T) {
	league, reports := fakeLeague(t)
	playerA := newFakePlayer(t, "P01", protocol.ParityEven)
	playerB := newFakePlayer(t, "P02", protocol.ParityOdd)
	playerB.chooseLag = 300 * time.Millisecond
	o, _ := newTestOrchestrator(t, league.URL)

	a := assignment(playerA, playerB)
	done := make(chan struct{})
	go func() {
		o.RunMatch(context.Background(), a)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond) // let the first run register its session
	o.RunMatch(context.Background(), a)
	<-done

	awaitReport(t, reports)
	select {
	case extra := <-reports:
		t.Fatalf("Duplicate assignment produced a second report: %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}
