package game

import "sort"

// VoteResult classifies the outcome of a voting phase.
type VoteResult string

const (
	VoteNoVotes       VoteResult = "no_votes"
	VoteEliminated    VoteResult = "eliminated"
	VoteNoElimination VoteResult = "no_elimination"
)

// NoEliminationReason explains a VoteNoElimination outcome.
type NoEliminationReason string

const (
	ReasonTie           NoEliminationReason = "tie"
	ReasonSkipsMajority NoEliminationReason = "skips_majority"
)

// VoteOutcome is the aggregate of one voting phase. Counts, SkipCount and
// Top are populated in every outcome so clients can display the tally.
type VoteOutcome struct {
	Result       VoteResult
	Reason       NoEliminationReason
	EliminatedID string
	Role         Role // role of the eliminated player, revealed
	Counts       map[string]int
	SkipCount    int
	MaxVotes     int
	Top          []string
}

// TallyVotes aggregates the recorded ballots. A nil target is an explicit
// abstain. Skips at or above the highest tally block the elimination, as
// does a tie for the top spot.
func (r *Room) TallyVotes() VoteOutcome {
	out := VoteOutcome{Counts: make(map[string]int)}

	for _, target := range r.Votes {
		if target == nil {
			out.SkipCount++
			continue
		}
		out.Counts[*target]++
	}

	if len(out.Counts) == 0 {
		out.Result = VoteNoVotes
		return out
	}

	for _, c := range out.Counts {
		if c > out.MaxVotes {
			out.MaxVotes = c
		}
	}
	for id, c := range out.Counts {
		if c == out.MaxVotes {
			out.Top = append(out.Top, id)
		}
	}
	sort.Strings(out.Top)

	switch {
	case out.SkipCount >= out.MaxVotes:
		out.Result = VoteNoElimination
		out.Reason = ReasonSkipsMajority
	case len(out.Top) == 1:
		out.Result = VoteEliminated
		out.EliminatedID = out.Top[0]
		out.Role = r.Roles[out.EliminatedID]
	default:
		out.Result = VoteNoElimination
		out.Reason = ReasonTie
	}
	return out
}
