package game

// WinState is the result of a victory check.
type WinState struct {
	Over    bool
	Winner  Winner
	Killers []string // living killer ids, named in the killers-win announcement
}

// EvaluateWin checks the victory conditions after an elimination step.
// Civilians win when no killer lives; killers win when they match or
// outnumber everyone else.
func (r *Room) EvaluateWin() WinState {
	killers := r.AliveWithRole(RoleKiller)
	others := 0
	for _, p := range r.AlivePlayers() {
		if r.Roles[p.ID] != RoleKiller {
			others++
		}
	}

	switch {
	case len(killers) == 0:
		return WinState{Over: true, Winner: WinnerCivilians}
	case len(killers) >= others:
		return WinState{Over: true, Winner: WinnerKillers, Killers: killers}
	}
	return WinState{}
}
