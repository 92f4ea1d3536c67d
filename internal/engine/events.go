package engine

import (
	"context"

	"github.com/AshuferMorningstar/Mafia/internal/game"
)

// Inbound event names consumed by the engine.
const (
	InJoinRoom        = "join_room"
	InLeaveRoom       = "leave_room"
	InSendMessage     = "send_message"
	InSetSettings     = "set_settings"
	InPlayerReady     = "player_ready"
	InKillerAction    = "killer_action"
	InDoctorAction    = "doctor_action"
	InDetectiveAction = "detective_action"
	InCastVote        = "cast_vote"
	InTimeSync        = "time_sync"
	InGetGameState    = "get_game_state"
)

// Outbound event names.
const (
	EvtPhase            = "phase"
	EvtPrestart         = "prestart"
	EvtPlayerJoined     = "player_joined"
	EvtPlayerLeft       = "player_left"
	EvtRoomState        = "room_state"
	EvtNewMessage       = "new_message"
	EvtNightResult      = "night_result"
	EvtNightSummary     = "night_summary"
	EvtVoteCast         = "vote_cast"
	EvtVoteResult       = "vote_result"
	EvtGameOver         = "game_over"
	EvtRoomReset        = "room_reset"
	EvtReadyState       = "ready_state"
	EvtRolesAssigned    = "roles_assigned"
	EvtSettingsUpdated  = "settings_updated"
	EvtYourRole         = "your_role"
	EvtDetectiveResult  = "detective_result"
	EvtActionAccepted   = "action_accepted"
	EvtActionBlocked    = "action_blocked"
	EvtChatBlocked      = "chat_blocked"
	EvtSettingsRejected = "settings_rejected"
	EvtJoinRejected     = "join_rejected"
	EvtTimeSync         = "time_sync_response"
	EvtGameState        = "game_state_update"
	EvtError            = "error"
)

// Chat scopes.
const (
	ScopePublic  = "public"
	ScopeKillers = "killers"
	ScopeDoctors = "doctors"
)

// Emitter fans engine events out to connections. Implementations must not
// block: the hub buffers per client and drops on overflow.
type Emitter interface {
	// ToRoom delivers to every connection in the room.
	ToRoom(roomCode, event string, payload any)
	// ToScope delivers to every connection registered to a sub-room.
	ToScope(scope, event string, payload any)
	// ToConn delivers to a single connection.
	ToConn(connID, event string, payload any)
	// AddToScope registers a connection into a sub-room.
	AddToScope(connID, scope string)
	// DropScope removes a sub-room and all its members.
	DropScope(scope string)
}

// ConnIndex resolves the live connections of a player in this engine's
// room. Multi-tab players have several.
type ConnIndex interface {
	ConnectionsOf(playerID string) []string
}

// ChatRecord is one persisted chat message row.
type ChatRecord struct {
	ID         string
	Room       string // room_code, room_code__killers or room_code__doctors
	SenderID   string
	SenderName string
	Text       string
	TS         int64 // unix milliseconds
}

// MessageStore persists chat. Calls happen outside the room serializer.
type MessageStore interface {
	Save(ctx context.Context, rec ChatRecord) error
	Purge(ctx context.Context, rooms ...string) error
}

// PhasePayload announces a phase with its server-authoritative deadline.
// StartTS is a server millisecond epoch; Duration is in seconds.
type PhasePayload struct {
	Phase    game.Phase `json:"phase"`
	Message  string     `json:"message"`
	Duration int        `json:"duration"`
	StartTS  int64      `json:"start_ts"`
}

// RoomStatePayload is sent on join, leave, phase change and elimination.
// The in-game role fields are scoped per recipient.
type RoomStatePayload struct {
	Players    []game.PlayerView `json:"players"`
	HostID     string            `json:"host_id"`
	Eliminated []string          `json:"eliminated"`

	AliveRoleMembers map[game.Role][]string `json:"alive_role_members,omitempty"`
	RoleCounts       map[game.Role]int      `json:"role_counts,omitempty"`
	DeadRoles        map[string]game.Role   `json:"dead_roles,omitempty"`
}

// NightResultPayload reports the outcome of a night. VictimRole is set
// only on a kill; SaverName only on a save.
type NightResultPayload struct {
	Result     game.NightResult `json:"result"`
	VictimID   string           `json:"victim_id,omitempty"`
	VictimRole game.Role        `json:"victim_role,omitempty"`
	SaverName  string           `json:"saver_name,omitempty"`
	Round      int              `json:"round"`
}

// VoteResultPayload reports the aggregate of a voting phase.
type VoteResultPayload struct {
	Result       game.VoteResult          `json:"result"`
	Reason       game.NoEliminationReason `json:"reason,omitempty"`
	EliminatedID string                   `json:"eliminated_id,omitempty"`
	Role         game.Role                `json:"role,omitempty"`
	Counts       map[string]int           `json:"counts"`
	SkipCount    int                      `json:"skip_count"`
	MaxVotes     int                      `json:"max_votes"`
	Top          []string                 `json:"top"`
}

// GameOverPayload announces the winner. Roles reveals every assignment;
// Killers names the living killers on a killer win.
type GameOverPayload struct {
	Winner  game.Winner          `json:"winner"`
	Killers []string             `json:"killers,omitempty"`
	Roles   map[string]game.Role `json:"roles"`
}

// DetectiveResultPayload is sent privately to the invoking detective.
type DetectiveResultPayload struct {
	TargetID string    `json:"target_id"`
	Role     game.Role `json:"role"`
	IsKiller bool      `json:"is_killer"`
}

// BlockedPayload carries the reason an action, chat or settings change was
// rejected. Sent only to the originating connection.
type BlockedPayload struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// ChatMessagePayload is the broadcast form of a chat message.
type ChatMessagePayload struct {
	ID    string     `json:"id"`
	From  ChatSender `json:"from"`
	Text  string     `json:"text"`
	Scope string     `json:"scope"`
	TS    int64      `json:"ts"`
}

// ChatSender identifies the author of a chat message.
type ChatSender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// KillerScope and DoctorScope name the team sub-rooms for a room code.
func KillerScope(roomCode string) string { return roomCode + "__killers" }
func DoctorScope(roomCode string) string { return roomCode + "__doctors" }
