package game

// Role is a player's secret assignment for one game.
type Role string

const (
	RoleUnassigned Role = ""
	RoleCivilian   Role = "civilian"
	RoleKiller     Role = "killer"
	RoleDoctor     Role = "doctor"
	RoleDetective  Role = "detective"
)

// Winner identifies the faction that won a finished game.
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerCivilians Winner = "civilians"
	WinnerKillers   Winner = "killers"
)

// Phase is a named state of the per-room game state machine.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhasePreNight   Phase = "pre_night"
	PhaseNightStart Phase = "night_start"
	PhaseKiller     Phase = "killer"
	PhaseDoctor     Phase = "doctor"
	PhaseDayStart   Phase = "day_start"
	PhaseDay        Phase = "day"
	PhaseVoting     Phase = "voting"
	PhasePostVote   Phase = "post_vote"
	PhaseEnded      Phase = "ended"
)

// IsNight reports whether p is one of the night sub-phases during which
// public chat is closed and team chat is open.
func (p Phase) IsNight() bool {
	switch p {
	case PhasePreNight, PhaseNightStart, PhaseKiller, PhaseDoctor:
		return true
	}
	return false
}
