package game

// Player is one roster entry. The id is stable across reconnects; liveness
// is derived from the room's eliminated and departed sets rather than
// stored on the player.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerView is the roster entry shape sent to clients.
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
}
