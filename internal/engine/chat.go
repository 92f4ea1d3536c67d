package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/AshuferMorningstar/Mafia/internal/game"
)

// MaxChatLen caps a single chat message, in runes.
const MaxChatLen = 500

// handleChat routes one chat message through the visibility gate.
//
// Public chat is blocked while the room is asleep; team chat is allowed
// only during night phases and only to players holding the matching role.
// Dead and departed players cannot send at all while a game runs.
func (e *Engine) handleChat(connID, playerID string, p chatPayload) {
	r := e.room
	chatBlocked := func(reason string) {
		e.emit.ToConn(connID, EvtChatBlocked, BlockedPayload{Action: InSendMessage, Reason: reason})
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return
	}
	if len([]rune(text)) > MaxChatLen {
		chatBlocked("message too long")
		return
	}
	sender := r.Player(playerID)
	if sender == nil || r.Departed[playerID] {
		chatBlocked(game.ErrNotInRoster.Error())
		return
	}
	if r.InGame && !r.IsAlive(playerID) {
		chatBlocked(game.ErrDead.Error())
		return
	}

	scope := p.Scope
	if scope == "" {
		scope = ScopePublic
	}

	var target, persistRoom string
	switch scope {
	case ScopePublic:
		if r.InGame && r.Phase.IsNight() {
			chatBlocked("public chat is closed at night")
			return
		}
		target, persistRoom = r.Code, r.Code
	case ScopeKillers:
		if !r.InGame || !r.Phase.IsNight() {
			chatBlocked(game.ErrWrongPhase.Error())
			return
		}
		if r.Roles[playerID] != game.RoleKiller {
			chatBlocked(game.ErrWrongRole.Error())
			return
		}
		target, persistRoom = KillerScope(r.Code), KillerScope(r.Code)
	case ScopeDoctors:
		if !r.InGame || !r.Phase.IsNight() {
			chatBlocked(game.ErrWrongPhase.Error())
			return
		}
		if r.Roles[playerID] != game.RoleDoctor {
			chatBlocked(game.ErrWrongRole.Error())
			return
		}
		target, persistRoom = DoctorScope(r.Code), DoctorScope(r.Code)
	default:
		chatBlocked("unknown scope: " + scope)
		return
	}

	msg := ChatMessagePayload{
		ID:    uuid.NewString(),
		From:  ChatSender{ID: sender.ID, Name: sender.Name},
		Text:  text,
		Scope: scope,
		TS:    e.clock.Now().UnixMilli(),
	}
	if scope == ScopePublic {
		e.emit.ToRoom(target, EvtNewMessage, map[string]any{"message": msg})
	} else {
		e.emit.ToScope(target, EvtNewMessage, map[string]any{"message": msg})
	}
	e.persist(msg, persistRoom)
}

// persist writes a message row off the serializer. A failed write loses
// history, never gameplay.
func (e *Engine) persist(msg ChatMessagePayload, room string) {
	rec := ChatRecord{
		ID:         msg.ID,
		Room:       room,
		SenderID:   msg.From.ID,
		SenderName: msg.From.Name,
		Text:       msg.Text,
		TS:         msg.TS,
	}
	store, log, m := e.store, e.log, e.metrics
	go func() {
		if err := store.Save(context.Background(), rec); err != nil {
			m.PersistErrors.Inc()
			log.Error("failed to persist chat message", "err", err, "room", room)
			return
		}
		m.MessagesPersisted.Inc()
	}()
}
