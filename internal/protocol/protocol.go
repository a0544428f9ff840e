// Package protocol defines the league.v2 wire format shared by the league
// manager, referees and players, plus the JSON-over-HTTP helpers used to
// exchange it.
//
// Every message carries the same envelope (protocol, message_type, sender,
// timestamp, conversation_id, auth_token). The core treats the envelope
// opaquely except for conversation_id, which correlates request/response
// pairs. Transport concerns (methods, status codes) stay in the client
// helpers; the payload structs below are the actual protocol surface.
package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Version identifies the protocol revision spoken by all agents.
const Version = "league.v2"

// Message type identifiers as they appear on the wire.
const (
	TypeGameInvitation    = "GAME_INVITATION"
	TypeChooseParityCall  = "CHOOSE_PARITY_CALL"
	TypeGameOver          = "GAME_OVER"
	TypeMatchResultReport = "MATCH_RESULT_REPORT"
	TypeMatchAssignment   = "MATCH_ASSIGNMENT"
	TypeRoundAnnouncement = "ROUND_ANNOUNCEMENT"
	TypeRoundCompleted    = "ROUND_COMPLETED"
	TypeTournamentStart   = "TOURNAMENT_START"
	TypeTournamentEnd     = "TOURNAMENT_END"
	TypeStandingsUpdate   = "LEAGUE_STANDINGS_UPDATE"
)

// GameType is the only game this league plays.
const GameType = "even_odd"

// Envelope is the common header carried by every league.v2 message.
type Envelope struct {
	Protocol       string `json:"protocol"`
	MessageType    string `json:"message_type"`
	Sender         string `json:"sender"`
	Timestamp      string `json:"timestamp"`
	ConversationID string `json:"conversation_id"`
	AuthToken      string `json:"auth_token,omitempty"`
}

// NewEnvelope builds an envelope for a fresh conversation: protocol version,
// UTC timestamp and a random conversation id.
func NewEnvelope(messageType, sender string) Envelope {
	return Envelope{
		Protocol:       Version,
		MessageType:    messageType,
		Sender:         sender,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: "conv_" + uuid.NewString(),
	}
}

// Reply builds an envelope answering an existing conversation, preserving its
// conversation id.
func Reply(in Envelope, messageType, sender string) Envelope {
	out := NewEnvelope(messageType, sender)
	if in.ConversationID != "" {
		out.ConversationID = in.ConversationID
	}
	return out
}
