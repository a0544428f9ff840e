package player

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

func postTo(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleInvitationAlwaysAccepts(t *testing.T) {
	srv := NewServer(RandomStrategy{})
	srv.SetIdentity("P01")

	inv := protocol.GameInvitation{
		Envelope:    protocol.NewEnvelope(protocol.TypeGameInvitation, "referee:REF01"),
		MatchID:     "L1_R1_M001",
		RoleInMatch: "PLAYER_A",
		OpponentID:  "P02",
	}
	w := postTo(t, srv.Routes(), protocol.PathInvitation, inv)
	require.Equal(t, http.StatusOK, w.Code)

	var ack protocol.InvitationAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Accept)
	assert.Equal(t, "P01", ack.PlayerID)
	assert.Equal(t, "L1_R1_M001", ack.MatchID)
	// Replies keep the caller's conversation id.
	assert.Equal(t, inv.ConversationID, ack.ConversationID)
	assert.Equal(t, "player:P01", ack.Sender)
}

func TestHandleChooseUsesStrategy(t *testing.T) {
	srv := NewServer(FixedStrategy{Choice: protocol.ParityOdd})
	srv.SetIdentity("P01")

	call := protocol.ChooseParityCall{
		Envelope: protocol.NewEnvelope(protocol.TypeChooseParityCall, "referee:REF01"),
		MatchID:  "L1_R1_M001",
		PlayerID: "P01",
		Context:  protocol.ChoiceContext{OpponentID: "P02", RoundID: 1},
	}
	w := postTo(t, srv.Routes(), protocol.PathChoose, call)
	require.Equal(t, http.StatusOK, w.Code)

	var resp protocol.ChoiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, protocol.ParityOdd, resp.ParityChoice)
	assert.Equal(t, "P01", resp.PlayerID)
}

func TestHandleChooseRandomIsValid(t *testing.T) {
	srv := NewServer(RandomStrategy{})
	srv.SetIdentity("P01")
	routes := srv.Routes()

	// Whatever the strategy rolls, the symbol on the wire must be legal.
	for i := 0; i < 20; i++ {
		call := protocol.ChooseParityCall{
			Envelope: protocol.NewEnvelope(protocol.TypeChooseParityCall, "referee:REF01"),
			MatchID:  "L1_R1_M001",
			PlayerID: "P01",
		}
		w := postTo(t, routes, protocol.PathChoose, call)
		require.Equal(t, http.StatusOK, w.Code)

		var resp protocol.ChoiceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.ParityChoice.Valid(), "got %q", resp.ParityChoice)
	}
}

func TestHandleGameOverAcks(t *testing.T) {
	srv := NewServer(RandomStrategy{})
	srv.SetIdentity("P01")

	over := protocol.GameOver{
		Envelope: protocol.NewEnvelope(protocol.TypeGameOver, "referee:REF01"),
		MatchID:  "L1_R1_M001",
		GameResult: protocol.GameResult{
			Status:         protocol.StatusWin,
			WinnerPlayerID: "P02",
		},
	}
	w := postTo(t, srv.Routes(), protocol.PathGameOver, over)
	require.Equal(t, http.StatusOK, w.Code)

	var ack protocol.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Acknowledged)
}

func TestHandleNotifyAcksAnyLeagueMessage(t *testing.T) {
	srv := NewServer(RandomStrategy{})
	srv.SetIdentity("P01")
	routes := srv.Routes()

	for _, messageType := range []string{
		protocol.TypeTournamentStart,
		protocol.TypeRoundAnnouncement,
		protocol.TypeRoundCompleted,
		protocol.TypeStandingsUpdate,
		protocol.TypeTournamentEnd,
	} {
		env := protocol.NewEnvelope(messageType, "league:league_manager")
		w := postTo(t, routes, protocol.PathNotify, env)
		require.Equal(t, http.StatusOK, w.Code, messageType)

		var ack protocol.Ack
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
		assert.True(t, ack.Acknowledged)
	}
}

func TestStrategyByName(t *testing.T) {
	assert.Equal(t, "random", StrategyByName("random").Name())
	assert.Equal(t, "random", StrategyByName("").Name())
	assert.Equal(t, protocol.ParityEven, StrategyByName("always_even").ChooseParity(MatchContext{}))
	assert.Equal(t, protocol.ParityOdd, StrategyByName("always_odd").ChooseParity(MatchContext{}))
}
