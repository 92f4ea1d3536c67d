package engine

import (
	"encoding/json"

	"github.com/AshuferMorningstar/Mafia/internal/game"
)

type targetPayload struct {
	TargetID string `json:"target_id"`
	Skip     bool   `json:"skip"`
}

type chatPayload struct {
	Text  string `json:"text"`
	Scope string `json:"scope"`
}

type timeSyncPayload struct {
	ClientTS int64 `json:"client_ts"`
}

// Handle routes one inbound event onto the room serializer. connID is the
// originating connection; playerID its authenticated player.
func (e *Engine) Handle(connID, playerID, event string, data json.RawMessage) {
	e.metrics.EventsIn.WithLabelValues(event).Inc()
	e.Post(func() {
		switch event {
		case InLeaveRoom:
			e.removePlayer(playerID)
		case InSendMessage:
			var p chatPayload
			if e.decode(connID, event, data, &p) {
				e.handleChat(connID, playerID, p)
			}
		case InSetSettings:
			var s game.Settings
			if e.decode(connID, event, data, &s) {
				e.handleSettings(connID, playerID, s)
			}
		case InPlayerReady:
			e.handleReady(connID, playerID)
		case InKillerAction:
			var p targetPayload
			if e.decode(connID, event, data, &p) {
				e.handleKillerAction(connID, playerID, p)
			}
		case InDoctorAction:
			var p targetPayload
			if e.decode(connID, event, data, &p) {
				e.handleDoctorAction(connID, playerID, p)
			}
		case InDetectiveAction:
			var p targetPayload
			if e.decode(connID, event, data, &p) {
				e.handleDetectiveAction(connID, playerID, p)
			}
		case InCastVote:
			var p targetPayload
			if e.decode(connID, event, data, &p) {
				e.handleVote(connID, playerID, p)
			}
		case InTimeSync:
			var p timeSyncPayload
			// A missing client_ts still gets a server timestamp back.
			_ = json.Unmarshal(data, &p)
			e.emit.ToConn(connID, EvtTimeSync, map[string]any{
				"client_ts": p.ClientTS,
				"server_ts": e.clock.Now().UnixMilli(),
			})
		case InGetGameState:
			e.emit.ToConn(connID, EvtGameState, e.gameStateFor(playerID))
		default:
			e.log.Debug("unknown event ignored", "event", event, "player", playerID)
			e.emit.ToConn(connID, EvtError, map[string]any{"error": "unknown event: " + event})
		}
	})
}

// decode unmarshals an event payload; on failure the event is dropped and
// the sender told.
func (e *Engine) decode(connID, event string, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		e.log.Debug("malformed payload", "event", event, "err", err)
		e.emit.ToConn(connID, EvtError, map[string]any{"error": "malformed payload for " + event})
		return false
	}
	return true
}

// actorCheck runs the validations shared by every in-game action: the
// actor must be a living roster member holding the required role, and the
// room must sit in the expected phase.
func (e *Engine) actorCheck(connID, action, playerID string, phase game.Phase, role game.Role) bool {
	r := e.room
	switch {
	case r.Phase != phase:
		e.blocked(connID, action, game.ErrWrongPhase.Error())
	case !r.Contains(playerID) || r.Departed[playerID]:
		e.blocked(connID, action, game.ErrNotInRoster.Error())
	case !r.IsAlive(playerID):
		e.blocked(connID, action, game.ErrDead.Error())
	case role != "" && r.Roles[playerID] != role:
		e.blocked(connID, action, game.ErrWrongRole.Error())
	default:
		return true
	}
	return false
}

// --- night actions -------------------------------------------------------

// handleKillerAction records the team's kill. The first submission wins
// and closes the killer window early.
func (e *Engine) handleKillerAction(connID, playerID string, p targetPayload) {
	r := e.room
	if !e.actorCheck(connID, InKillerAction, playerID, game.PhaseKiller, game.RoleKiller) {
		return
	}
	if r.NightKill != nil {
		e.blocked(connID, InKillerAction, game.ErrAlreadyActed.Error())
		return
	}
	if !p.Skip {
		if !r.IsAlive(p.TargetID) {
			e.blocked(connID, InKillerAction, game.ErrInvalidTarget.Error())
			return
		}
		if r.Roles[p.TargetID] == game.RoleKiller {
			e.blocked(connID, InKillerAction, game.ErrKillerTarget.Error())
			return
		}
	}
	r.NightKill = &game.NightAction{TargetID: p.TargetID, ActorID: playerID, Skipped: p.Skip}
	e.emit.ToConn(connID, EvtActionAccepted, BlockedPayload{Action: InKillerAction})
	e.emit.ToScope(KillerScope(r.Code), EvtActionAccepted, map[string]any{
		"action": InKillerAction, "by": playerID, "skipped": p.Skip,
	})
	e.cancelTimer()
	e.finishKiller()
}

// handleDoctorAction records the save and closes the doctor window early.
// Self-saves are legal.
func (e *Engine) handleDoctorAction(connID, playerID string, p targetPayload) {
	r := e.room
	if !e.actorCheck(connID, InDoctorAction, playerID, game.PhaseDoctor, game.RoleDoctor) {
		return
	}
	if r.DoctorSave != nil {
		e.blocked(connID, InDoctorAction, game.ErrAlreadyActed.Error())
		return
	}
	if !p.Skip && !r.IsAlive(p.TargetID) {
		e.blocked(connID, InDoctorAction, game.ErrInvalidTarget.Error())
		return
	}
	r.DoctorSave = &game.NightAction{TargetID: p.TargetID, ActorID: playerID, Skipped: p.Skip}
	e.emit.ToConn(connID, EvtActionAccepted, BlockedPayload{Action: InDoctorAction})
	e.cancelTimer()
	e.resolveNight()
}

// handleDetectiveAction reveals one player's card, once per game per
// detective. It rides inside any night sub-phase and never advances the
// phase; self-investigation is pointless but legal.
func (e *Engine) handleDetectiveAction(connID, playerID string, p targetPayload) {
	r := e.room
	if !r.Phase.IsNight() {
		e.blocked(connID, InDetectiveAction, game.ErrWrongPhase.Error())
		return
	}
	switch {
	case !r.Contains(playerID) || r.Departed[playerID]:
		e.blocked(connID, InDetectiveAction, game.ErrNotInRoster.Error())
	case !r.IsAlive(playerID):
		e.blocked(connID, InDetectiveAction, game.ErrDead.Error())
	case r.Roles[playerID] != game.RoleDetective:
		e.blocked(connID, InDetectiveAction, game.ErrWrongRole.Error())
	case r.DetectiveUsed[playerID]:
		e.blocked(connID, InDetectiveAction, game.ErrAbilityConsumed.Error())
	case !r.IsAlive(p.TargetID):
		e.blocked(connID, InDetectiveAction, game.ErrInvalidTarget.Error())
	default:
		r.DetectiveUsed[playerID] = true
		role := r.Roles[p.TargetID]
		e.toPlayer(playerID, EvtDetectiveResult, DetectiveResultPayload{
			TargetID: p.TargetID,
			Role:     role,
			IsKiller: role == game.RoleKiller,
		})
	}
}

// --- voting --------------------------------------------------------------

// handleVote records or replaces a player's vote. A skip is an explicit
// abstain that still counts toward early completion.
func (e *Engine) handleVote(connID, playerID string, p targetPayload) {
	r := e.room
	if !e.actorCheck(connID, InCastVote, playerID, game.PhaseVoting, "") {
		return
	}
	var target *string
	if !p.Skip {
		if p.TargetID == playerID {
			e.blocked(connID, InCastVote, game.ErrSelfVote.Error())
			return
		}
		if !r.IsAlive(p.TargetID) {
			e.blocked(connID, InCastVote, game.ErrInvalidTarget.Error())
			return
		}
		if r.Roles[playerID] == game.RoleKiller && r.Roles[p.TargetID] == game.RoleKiller {
			e.blocked(connID, InCastVote, game.ErrKillerTarget.Error())
			return
		}
		t := p.TargetID
		target = &t
	}
	r.Votes[playerID] = target
	// Voter identity yes, choice no: the tally stays secret until the
	// phase resolves. Re-votes re-broadcast with the same count.
	e.emit.ToRoom(r.Code, EvtVoteCast, map[string]any{
		"voter_id": playerID,
		"voted":    len(r.Votes),
		"alive":    len(r.AlivePlayers()),
	})
	e.completeVotingIfDone()
}
