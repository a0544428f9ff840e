package referee

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

func TestHandleAssignAcksAndRunsMatch(t *testing.T) {
	league, reports := fakeLeague(t)
	playerA := newFakePlayer(t, "P01", protocol.ParityEven)
	playerB := newFakePlayer(t, "P02", protocol.ParityOdd)
	o, _ := newTestOrchestrator(t, league.URL)
	srv := NewServer(o)

	raw, err := json.Marshal(assignment(playerA, playerB))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, protocol.PathAssignMatch, bytes.NewReader(raw))
	w := httptest.NewRecorder()

	start := time.Now()
	srv.Routes().ServeHTTP(w, req)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, w.Code)
	var ack protocol.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Acknowledged)
	// The ack returns immediately; the match runs in the background.
	assert.Less(t, elapsed, time.Second)

	report := awaitReport(t, reports)
	assert.Equal(t, "L1_R1_M001", report.MatchID)
}

func TestHandleAssignRejectsBadPayloads(t *testing.T) {
	o, _ := newTestOrchestrator(t, "http://league:1")
	srv := NewServer(o)
	routes := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, protocol.PathAssignMatch, bytes.NewReader([]byte("{broken")))
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	raw, err := json.Marshal(protocol.MatchAssignment{MatchID: "m1"}) // no endpoints
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, protocol.PathAssignMatch, bytes.NewReader(raw))
	w = httptest.NewRecorder()
	routes.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()
	a := protocol.MatchAssignment{MatchID: "m1"}

	s, err := r.Create(a)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, r.Active())

	_, err = r.Create(a)
	assert.Error(t, err, "same match id cannot be active twice")

	got, ok := r.Get("m1")
	require.True(t, ok)
	assert.Equal(t, s, got)

	r.Close("m1")
	assert.Equal(t, 0, r.Active())
	_, ok = r.Get("m1")
	assert.False(t, ok)

	// Closed ids can be reused.
	_, err = r.Create(a)
	assert.NoError(t, err)
}
