package game

// Duration clamp bounds and defaults, in seconds.
const (
	MinDurationS     = 120
	MaxDurationS     = 300
	DefaultDurationS = 120
)

// Settings are the host-tunable parameters of a room. Durations are in
// seconds and always clamped to [MinDurationS, MaxDurationS].
type Settings struct {
	KillerCount    int `json:"killer_count"`
	DoctorCount    int `json:"doctor_count"`
	DetectiveCount int `json:"detective_count"`

	KillerDurationS     int `json:"killer_duration_s"`
	DoctorDurationS     int `json:"doctor_duration_s"`
	VotingDurationS     int `json:"voting_duration_s"`
	DiscussionDurationS int `json:"discussion_duration_s"`
}

// DefaultSettings returns the out-of-the-box room configuration:
// one killer, one doctor, no detective, 120 s phases.
func DefaultSettings() Settings {
	return Settings{
		KillerCount:         1,
		DoctorCount:         1,
		DetectiveCount:      0,
		KillerDurationS:     DefaultDurationS,
		DoctorDurationS:     DefaultDurationS,
		VotingDurationS:     DefaultDurationS,
		DiscussionDurationS: DefaultDurationS,
	}
}

func clampDuration(s int) int {
	if s < MinDurationS {
		return MinDurationS
	}
	if s > MaxDurationS {
		return MaxDurationS
	}
	return s
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Normalize clamps durations into range and coerces counts to be
// non-negative. Returns the cleaned copy.
func (s Settings) Normalize() Settings {
	s.KillerCount = clampCount(s.KillerCount)
	s.DoctorCount = clampCount(s.DoctorCount)
	s.DetectiveCount = clampCount(s.DetectiveCount)
	s.KillerDurationS = clampDuration(s.KillerDurationS)
	s.DoctorDurationS = clampDuration(s.DoctorDurationS)
	s.VotingDurationS = clampDuration(s.VotingDurationS)
	s.DiscussionDurationS = clampDuration(s.DiscussionDurationS)
	return s
}

// DecreasesDurations reports whether next lowers any duration below the
// values currently in force. Durations may only move up once set.
func (s Settings) DecreasesDurations(next Settings) bool {
	return next.KillerDurationS < s.KillerDurationS ||
		next.DoctorDurationS < s.DoctorDurationS ||
		next.VotingDurationS < s.VotingDurationS ||
		next.DiscussionDurationS < s.DiscussionDurationS
}
