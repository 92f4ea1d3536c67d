package game

import "strings"

// NightAction is one recorded night decision: a kill or a save. A nil
// target with Skipped set is an explicit abstain.
type NightAction struct {
	TargetID string `json:"target_id"`
	ActorID  string `json:"actor_id"`
	Skipped  bool   `json:"skipped"`
}

// Room holds the complete state of one game room. It carries no lock of
// its own: every access goes through the owning engine's serializer.
type Room struct {
	Code     string
	Players  []*Player // insertion order preserved for host promotion
	HostID   string
	Phase    Phase
	Settings Settings
	Round    int
	InGame   bool
	Winner   Winner

	Eliminated map[string]bool // dead, still displayed in the roster
	Departed   map[string]bool // left mid-game; displayed but non-actors
	Ready      map[string]bool
	Roles      map[string]Role // valid only while InGame

	NightKill     *NightAction
	DoctorSave    *NightAction
	DetectiveUsed map[string]bool    // one-shot per game
	Votes         map[string]*string // voter -> target id, nil = abstain
}

// NewRoom creates an empty room in the lobby phase.
func NewRoom(code string) *Room {
	return &Room{
		Code:          code,
		Phase:         PhaseWaiting,
		Settings:      DefaultSettings(),
		Eliminated:    make(map[string]bool),
		Departed:      make(map[string]bool),
		Ready:         make(map[string]bool),
		Roles:         make(map[string]Role),
		DetectiveUsed: make(map[string]bool),
		Votes:         make(map[string]*string),
	}
}

// Contains reports whether id is in the roster.
func (r *Room) Contains(id string) bool {
	return r.Player(id) != nil
}

// Player returns the roster entry for id, or nil.
func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// NameTaken reports whether another roster player already uses name.
// The comparison ignores case and surrounding whitespace; departed
// players no longer hold their name.
func (r *Room) NameTaken(name, excludeID string) bool {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, p := range r.Players {
		if p.ID == excludeID || r.Departed[p.ID] {
			continue
		}
		if strings.ToLower(strings.TrimSpace(p.Name)) == want {
			return true
		}
	}
	return false
}

// AddPlayer appends a player to the roster, deduplicating by id, and
// assigns the host seat if the room has none. Returns true if the roster
// changed.
func (r *Room) AddPlayer(p Player) bool {
	if r.Contains(p.ID) {
		if r.HostID == "" {
			r.HostID = p.ID
		}
		return false
	}
	cp := p
	r.Players = append(r.Players, &cp)
	if r.HostID == "" {
		r.HostID = p.ID
	}
	return true
}

// RemovePlayer takes a player out of the game. In the lobby the entry is
// dropped from the roster; mid-game it stays for display but becomes a
// non-actor. Host promotion is re-run either way.
func (r *Room) RemovePlayer(id string) {
	if !r.Contains(id) {
		return
	}
	if r.InGame {
		r.Departed[id] = true
	} else {
		kept := r.Players[:0]
		for _, p := range r.Players {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		r.Players = kept
		delete(r.Ready, id)
	}
	if r.HostID == id {
		r.promoteHost()
	}
}

// promoteHost hands the host seat to the first present roster player.
func (r *Room) promoteHost() {
	r.HostID = ""
	for _, p := range r.Players {
		if !r.Departed[p.ID] {
			r.HostID = p.ID
			return
		}
	}
}

// IsAlive reports whether a roster player is a live actor: present, not
// eliminated, not departed.
func (r *Room) IsAlive(id string) bool {
	return r.Contains(id) && !r.Eliminated[id] && !r.Departed[id]
}

// AlivePlayers returns live actors in roster order.
func (r *Room) AlivePlayers() []*Player {
	var out []*Player
	for _, p := range r.Players {
		if r.IsAlive(p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// AliveWithRole returns the ids of live actors holding the given role.
func (r *Room) AliveWithRole(role Role) []string {
	var out []string
	for _, p := range r.Players {
		if r.IsAlive(p.ID) && r.Roles[p.ID] == role {
			out = append(out, p.ID)
		}
	}
	return out
}

// AllReady reports whether every present roster player has readied up and
// the roster is non-empty.
func (r *Room) AllReady() bool {
	n := 0
	for _, p := range r.Players {
		if r.Departed[p.ID] {
			continue
		}
		if !r.Ready[p.ID] {
			return false
		}
		n++
	}
	return n >= 1
}

// BeginGame installs the role assignment and flips the room into play.
func (r *Room) BeginGame(roles map[string]Role) {
	r.Roles = roles
	r.InGame = true
	r.Winner = WinnerNone
	r.Round = 0
}

// BeginRound clears the per-round action state ahead of a night.
func (r *Room) BeginRound() {
	r.Round++
	r.NightKill = nil
	r.DoctorSave = nil
	r.Votes = make(map[string]*string)
}

// Reset clears all game state and returns the room to the lobby so the
// same code can host a fresh game. The roster survives; departed players
// are finally dropped.
func (r *Room) Reset() {
	kept := r.Players[:0]
	for _, p := range r.Players {
		if !r.Departed[p.ID] {
			kept = append(kept, p)
		}
	}
	r.Players = kept
	r.Phase = PhaseWaiting
	r.InGame = false
	r.Winner = WinnerNone
	r.Round = 0
	r.Eliminated = make(map[string]bool)
	r.Departed = make(map[string]bool)
	r.Ready = make(map[string]bool)
	r.Roles = make(map[string]Role)
	r.DetectiveUsed = make(map[string]bool)
	r.Votes = make(map[string]*string)
	r.NightKill = nil
	r.DoctorSave = nil
	r.promoteHost()
}

// RosterViews returns the client-facing roster in insertion order.
func (r *Room) RosterViews() []PlayerView {
	out := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, PlayerView{ID: p.ID, Name: p.Name, Alive: r.IsAlive(p.ID)})
	}
	return out
}

// EliminatedIDs returns the dead set as a slice for payloads.
func (r *Room) EliminatedIDs() []string {
	var out []string
	for _, p := range r.Players {
		if r.Eliminated[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}
