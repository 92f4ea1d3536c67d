package game

import "errors"

var (
	ErrGameInProgress  = errors.New("game is already in progress")
	ErrNotInRoster     = errors.New("player is not in the room")
	ErrWrongPhase      = errors.New("action is not valid in the current phase")
	ErrWrongRole       = errors.New("action is not valid for this role")
	ErrDead            = errors.New("dead players cannot act")
	ErrAlreadyActed    = errors.New("action already recorded this round")
	ErrAbilityConsumed = errors.New("one-shot ability already used this game")
	ErrInvalidTarget   = errors.New("invalid target")
	ErrKillerTarget    = errors.New("killers cannot target other killers")
	ErrSelfVote        = errors.New("players cannot vote for themselves")
	ErrNotHost         = errors.New("only the host may do this")
	ErrDurationLowered = errors.New("durations cannot be decreased")
)
