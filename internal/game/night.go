package game

// NightResult classifies the outcome of one night.
type NightResult string

const (
	NightNone   NightResult = "none"
	NightSaved  NightResult = "saved"
	NightKilled NightResult = "killed"
)

// NightOutcome is the resolved effect of the recorded night actions.
// VictimRole is set only on a kill; SaverID only on a save.
type NightOutcome struct {
	Result     NightResult
	VictimID   string
	VictimRole Role
	SaverID    string
}

// ResolveNight applies the recorded kill and save in fixed precedence.
// A save counts only if its actor is still an alive doctor at resolution
// time: a save recorded by a doctor who has since died protects nobody.
// The room state is not mutated; the caller applies the outcome.
func (r *Room) ResolveNight() NightOutcome {
	kill := r.NightKill
	if kill == nil || kill.Skipped || kill.TargetID == "" {
		return NightOutcome{Result: NightNone}
	}

	save := r.DoctorSave
	saveValid := save != nil && !save.Skipped && save.TargetID != "" &&
		r.Roles[save.ActorID] == RoleDoctor && r.IsAlive(save.ActorID)

	if saveValid && save.TargetID == kill.TargetID {
		return NightOutcome{Result: NightSaved, VictimID: kill.TargetID, SaverID: save.ActorID}
	}
	return NightOutcome{
		Result:     NightKilled,
		VictimID:   kill.TargetID,
		VictimRole: r.Roles[kill.TargetID],
	}
}
