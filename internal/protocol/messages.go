package protocol

// Parity is a player's choice in the even/odd game.
type Parity string

const (
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

// Valid reports whether p is one of the two legal symbols. Anything else is a
// protocol violation and must not be coerced.
func (p Parity) Valid() bool {
	return p == ParityEven || p == ParityOdd
}

// Match outcome status values.
const (
	StatusWin     = "WIN"
	StatusTie     = "TIE"
	StatusAborted = "ABORTED"
)

// GameInvitation is sent by a referee to each player of a match. The player
// must answer with an InvitationAck within the invitation timeout.
type GameInvitation struct {
	Envelope
	LeagueID    string `json:"league_id"`
	RoundID     int    `json:"round_id"`
	MatchID     string `json:"match_id"`
	GameType    string `json:"game_type"`
	RoleInMatch string `json:"role_in_match"` // "PLAYER_A" or "PLAYER_B"
	OpponentID  string `json:"opponent_id"`
}

// InvitationAck is the player's answer to a GameInvitation.
type InvitationAck struct {
	Envelope
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	Accept   bool   `json:"accept"`
}

// ChoiceContext gives a player the information it may use when choosing.
type ChoiceContext struct {
	OpponentID        string         `json:"opponent_id"`
	RoundID           int            `json:"round_id"`
	YourStandings     *StandingEntry `json:"your_standings,omitempty"`
	OpponentStandings *StandingEntry `json:"opponent_standings,omitempty"`
}

// ChooseParityCall asks a player for its parity choice. Requests are issued to
// both players of a match simultaneously; the deadline is informational, the
// referee enforces its own timeout.
type ChooseParityCall struct {
	Envelope
	MatchID  string        `json:"match_id"`
	PlayerID string        `json:"player_id"`
	GameType string        `json:"game_type"`
	Context  ChoiceContext `json:"context"`
	Deadline string        `json:"deadline"`
}

// ChoiceResponse carries the player's parity choice back to the referee.
type ChoiceResponse struct {
	Envelope
	MatchID      string `json:"match_id"`
	PlayerID     string `json:"player_id"`
	ParityChoice Parity `json:"parity_choice"`
}

// GameResult describes a finished (or aborted) match.
type GameResult struct {
	Status         string            `json:"status"`
	WinnerPlayerID string            `json:"winner_player_id,omitempty"`
	DrawnNumber    int               `json:"drawn_number,omitempty"`
	NumberParity   Parity            `json:"number_parity,omitempty"`
	Choices        map[string]Parity `json:"choices,omitempty"`
	Scores         map[string]int    `json:"scores,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

// GameOver notifies a player of its match result. Delivery is fire-and-forget.
type GameOver struct {
	Envelope
	MatchID    string     `json:"match_id"`
	GameType   string     `json:"game_type"`
	GameResult GameResult `json:"game_result"`
}

// Ack is the generic acknowledgment returned for notifications.
type Ack struct {
	Envelope
	Acknowledged bool `json:"acknowledged"`
}

// ResultDetails records how a decided match played out.
type ResultDetails struct {
	DrawnNumber int               `json:"drawn_number"`
	Choices     map[string]Parity `json:"choices"`
}

// ReportedResult is the result block of a MatchResultReport. For aborted
// matches Status is "ABORTED", Winner is empty and Reason explains the abort.
type ReportedResult struct {
	Status  string         `json:"status,omitempty"`
	Winner  string         `json:"winner,omitempty"`
	Score   map[string]int `json:"score,omitempty"`
	Details *ResultDetails `json:"details,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// MatchResultReport is delivered by a referee to the league manager so
// standings and round bookkeeping can proceed. Aborted matches are reported
// too: round completion must never wait on a match that will not finish.
type MatchResultReport struct {
	Envelope
	LeagueID string         `json:"league_id"`
	RoundID  int            `json:"round_id"`
	MatchID  string         `json:"match_id"`
	GameType string         `json:"game_type"`
	Result   ReportedResult `json:"result"`
}

// MatchAssignment hands a scheduled match to its referee, carrying everything
// the referee needs to run it without further lookups.
type MatchAssignment struct {
	Envelope
	LeagueID        string `json:"league_id"`
	RoundID         int    `json:"round_id"`
	MatchID         string `json:"match_id"`
	PlayerAID       string `json:"player_A_id"`
	PlayerBID       string `json:"player_B_id"`
	PlayerAEndpoint string `json:"player_A_endpoint"`
	PlayerBEndpoint string `json:"player_B_endpoint"`
}

// AnnouncedMatch is one fixture inside a RoundAnnouncement.
type AnnouncedMatch struct {
	MatchID         string `json:"match_id"`
	GameType        string `json:"game_type"`
	PlayerAID       string `json:"player_A_id"`
	PlayerBID       string `json:"player_B_id"`
	RefereeID       string `json:"referee_id"`
	RefereeEndpoint string `json:"referee_endpoint"`
}

// RoundAnnouncement is broadcast to every player when a round starts.
type RoundAnnouncement struct {
	Envelope
	LeagueID string           `json:"league_id"`
	RoundID  int              `json:"round_id"`
	Matches  []AnnouncedMatch `json:"matches"`
}

// RoundCompleted is broadcast to every player when the last match of a round
// reports in. NextRoundID is null when the completed round was the last.
type RoundCompleted struct {
	Envelope
	LeagueID         string `json:"league_id"`
	RoundID          int    `json:"round_id"`
	MatchesCompleted int    `json:"matches_completed"`
	NextRoundID      *int   `json:"next_round_id"`
}

// TournamentStart is broadcast once, before round 1 is announced.
type TournamentStart struct {
	Envelope
	LeagueID     string `json:"league_id"`
	TotalRounds  int    `json:"total_rounds"`
	TotalMatches int    `json:"total_matches"`
	PlayerCount  int    `json:"player_count"`
}

// StandingEntry is one player's row in the leaderboard.
type StandingEntry struct {
	PlayerID      string `json:"player_id"`
	DisplayName   string `json:"display_name,omitempty"`
	Rank          int    `json:"rank"`
	Points        int    `json:"points"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Ties          int    `json:"ties"`
	MatchesPlayed int    `json:"matches_played"`
}

// StandingsUpdate is broadcast to players after each completed round.
type StandingsUpdate struct {
	Envelope
	LeagueID  string          `json:"league_id"`
	RoundID   int             `json:"round_id"`
	Standings []StandingEntry `json:"standings"`
}

// TournamentEnd closes the tournament with the final leaderboard.
type TournamentEnd struct {
	Envelope
	LeagueID       string          `json:"league_id"`
	TotalRounds    int             `json:"total_rounds"`
	TotalMatches   int             `json:"total_matches"`
	Champion       *StandingEntry  `json:"champion"`
	FinalStandings []StandingEntry `json:"final_standings"`
}

// RegisterPlayerRequest enrolls a player service with the league manager.
type RegisterPlayerRequest struct {
	DisplayName string   `json:"display_name"`
	Endpoint    string   `json:"endpoint"`
	GameTypes   []string `json:"game_types,omitempty"`
	Version     string   `json:"version,omitempty"`
}

// RegisterPlayerResponse returns the assigned id and the opaque bearer token
// the player presents on subsequent calls.
type RegisterPlayerResponse struct {
	PlayerID  string `json:"player_id"`
	AuthToken string `json:"auth_token"`
}

// RegisterRefereeRequest enrolls a referee service with the league manager.
type RegisterRefereeRequest struct {
	DisplayName          string   `json:"display_name"`
	Endpoint             string   `json:"endpoint"`
	MaxConcurrentMatches int      `json:"max_concurrent_matches,omitempty"`
	GameTypes            []string `json:"game_types,omitempty"`
	Version              string   `json:"version,omitempty"`
}

// RegisterRefereeResponse mirrors RegisterPlayerResponse for referees.
type RegisterRefereeResponse struct {
	RefereeID string `json:"referee_id"`
	AuthToken string `json:"auth_token"`
}

// StandingsResponse answers a get_standings query.
type StandingsResponse struct {
	Standings []StandingEntry `json:"standings"`
}
