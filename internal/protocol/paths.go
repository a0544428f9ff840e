package protocol

// HTTP paths agents expose, relative to their registered endpoint. Agents
// register a base endpoint; peers append these paths when calling.
const (
	// Player surface (referee -> player, league -> player).
	PathInvitation = "/game/invitation"
	PathChoose     = "/game/choose"
	PathGameOver   = "/game/result"
	PathNotify     = "/league/notify"

	// Referee surface (league -> referee).
	PathAssignMatch = "/match/assign"

	// League manager surface (agents -> league).
	PathRegisterPlayer  = "/register/player"
	PathRegisterReferee = "/register/referee"
	PathReportResult    = "/league/report_result"
	PathStandings       = "/league/standings"
)
