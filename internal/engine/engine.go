package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AshuferMorningstar/Mafia/internal/game"
	"github.com/AshuferMorningstar/Mafia/internal/platform/logger"
	"github.com/AshuferMorningstar/Mafia/internal/platform/metrics"
)

// Timings are the fixed controller delays. Per-phase durations come from
// the room settings instead.
type Timings struct {
	Prestart      time.Duration // lobby countdown before the first night
	Announce      time.Duration // night-start and day-start announcements
	SummaryPause  time.Duration // display pause after night_summary
	PostVotePause time.Duration // display pause after vote_result
	EndedPause    time.Duration // display pause before the room resets
}

// DefaultTimings returns the production delays.
func DefaultTimings() Timings {
	return Timings{
		Prestart:      3 * time.Second,
		Announce:      5 * time.Second,
		SummaryPause:  5 * time.Second,
		PostVotePause: 3 * time.Second,
		EndedPause:    10 * time.Second,
	}
}

// Deps are the collaborators injected into a room engine.
type Deps struct {
	Clock   Clock
	Emitter Emitter
	Conns   ConnIndex
	Store   MessageStore
	Log     *logger.Logger
	Metrics *metrics.Collector
	RNG     *rand.Rand
	Timings Timings
}

// Engine drives one room. All state behind it is owned by a single
// goroutine; external callers interact only through the exported methods,
// which post closures into the mailbox.
type Engine struct {
	room    *game.Room
	clock   Clock
	emit    Emitter
	conns   ConnIndex
	store   MessageStore
	log     *logger.Logger
	metrics *metrics.Collector
	rng     *rand.Rand
	timings Timings

	mailbox chan func()
	quit    chan struct{}
	once    sync.Once

	// Phase deadline handle. The generation counter makes a cancelled
	// timer's fire a no-op even if it already escaped Stop.
	phaseTimer Timer
	timerGen   uint64

	// Most recent night outcome, replayed as the day summary.
	lastNight NightResultPayload
}

// New creates an engine for the given room code. Call Start to begin
// draining the mailbox.
func New(code string, d Deps) *Engine {
	return &Engine{
		room:    game.NewRoom(code),
		clock:   d.Clock,
		emit:    d.Emitter,
		conns:   d.Conns,
		store:   d.Store,
		log:     d.Log.With("room", code),
		metrics: d.Metrics,
		rng:     d.RNG,
		timings: d.Timings,
		mailbox: make(chan func(), 256),
		quit:    make(chan struct{}),
	}
}

// Code returns the room code.
func (e *Engine) Code() string { return e.room.Code }

// Start spawns the room's serializer goroutine.
func (e *Engine) Start() { go e.run() }

// Stop terminates the serializer. Pending timers may still fire but their
// posts land in a closed-off mailbox and are discarded.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.quit) })
}

func (e *Engine) run() {
	for {
		select {
		case <-e.quit:
			return
		case fn := <-e.mailbox:
			e.call(fn)
		}
	}
}

// call runs one mailbox entry. Panics are contained so a malformed event
// cannot tear down the room; the phase deadline remains the liveness
// backstop.
func (e *Engine) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("recovered panic in room serializer", "panic", r)
		}
	}()
	fn()
}

// Post enqueues fn on the room serializer.
func (e *Engine) Post(fn func()) {
	select {
	case e.mailbox <- fn:
	case <-e.quit:
	}
}

// --- timer ownership -----------------------------------------------------

// schedule replaces the room's deadline with a new one. The fire path
// re-enters through the mailbox and checks the generation, so a timer
// cancelled after firing does nothing.
func (e *Engine) schedule(d time.Duration, fn func()) {
	e.cancelTimer()
	gen := e.timerGen
	e.phaseTimer = e.clock.AfterFunc(d, func() {
		e.Post(func() {
			if e.timerGen != gen {
				return
			}
			e.metrics.TimerFires.Inc()
			fn()
		})
	})
}

// cancelTimer invalidates the current deadline, if any.
func (e *Engine) cancelTimer() {
	if e.phaseTimer != nil {
		if e.phaseTimer.Stop() {
			e.metrics.TimerCancels.Inc()
		}
		e.phaseTimer = nil
	}
	e.timerGen++
}

// --- emits ---------------------------------------------------------------

func (e *Engine) emitPhase(p game.Phase, message string, durS int) {
	e.room.Phase = p
	e.emit.ToRoom(e.room.Code, EvtPhase, PhasePayload{
		Phase:    p,
		Message:  message,
		Duration: durS,
		StartTS:  e.clock.Now().UnixMilli(),
	})
	e.emitRoomState()
}

// emitRoomState sends the roster snapshot. Outside a game it is a plain
// room broadcast. In-game the role fields are scoped per recipient: each
// player sees their own role group, the dead players' roles and, for
// killers, their fellow killers.
func (e *Engine) emitRoomState() {
	r := e.room
	base := RoomStatePayload{
		Players:    r.RosterViews(),
		HostID:     r.HostID,
		Eliminated: r.EliminatedIDs(),
	}
	if !r.InGame {
		e.emit.ToRoom(r.Code, EvtRoomState, base)
		return
	}

	deadRoles := make(map[string]game.Role)
	for id := range r.Eliminated {
		deadRoles[id] = r.Roles[id]
	}
	counts := make(map[game.Role]int)
	for _, p := range r.AlivePlayers() {
		counts[r.Roles[p.ID]]++
	}

	for _, p := range r.Players {
		if r.Departed[p.ID] {
			continue
		}
		view := base
		view.DeadRoles = deadRoles
		view.RoleCounts = counts
		view.AliveRoleMembers = e.visibleRoleMembers(p.ID)
		for _, connID := range e.conns.ConnectionsOf(p.ID) {
			e.emit.ToConn(connID, EvtRoomState, view)
		}
	}
}

// visibleRoleMembers groups the alive players the recipient is entitled
// to see, keyed by role.
func (e *Engine) visibleRoleMembers(recipient string) map[game.Role][]string {
	r := e.room
	out := make(map[game.Role][]string)
	if r.IsAlive(recipient) {
		role := r.Roles[recipient]
		if role == game.RoleKiller {
			out[game.RoleKiller] = r.AliveWithRole(game.RoleKiller)
		} else {
			out[role] = []string{recipient}
		}
	}
	return out
}

// toPlayer sends a private event to every connection of a player, so
// multi-tab users see it on every tab.
func (e *Engine) toPlayer(playerID, event string, payload any) {
	for _, connID := range e.conns.ConnectionsOf(playerID) {
		e.emit.ToConn(connID, event, payload)
	}
}

func (e *Engine) blocked(connID, action, reason string) {
	e.emit.ToConn(connID, EvtActionBlocked, BlockedPayload{Action: action, Reason: reason})
}

// --- join / leave --------------------------------------------------------

// JoinResult tells the transport how a join attempt ended.
type JoinResult struct {
	Accepted bool
	Rejoined bool
}

// Join admits a player on a connection. While a game runs only roster
// players may reattach; everyone else gets join_rejected. done is invoked
// on the serializer with the outcome so the transport can finish wiring
// the connection.
func (e *Engine) Join(connID string, p game.Player, done func(JoinResult)) {
	e.Post(func() {
		r := e.room
		known := r.Contains(p.ID) && !r.Departed[p.ID]
		if r.InGame && !known {
			e.emit.ToConn(connID, EvtJoinRejected, BlockedPayload{
				Action: InJoinRoom, Reason: "game in progress",
			})
			if done != nil {
				done(JoinResult{})
			}
			return
		}
		if r.NameTaken(p.Name, p.ID) {
			e.emit.ToConn(connID, EvtJoinRejected, BlockedPayload{
				Action: InJoinRoom, Reason: "name already taken",
			})
			if done != nil {
				done(JoinResult{})
			}
			return
		}

		added := r.AddPlayer(p)
		if added {
			e.emit.ToRoom(r.Code, EvtPlayerJoined, map[string]any{"player": p})
		}
		if r.InGame {
			// Reconnecting specials rejoin their team scope and get
			// their card and a full state snapshot back.
			switch r.Roles[p.ID] {
			case game.RoleKiller:
				e.emit.AddToScope(connID, KillerScope(r.Code))
			case game.RoleDoctor:
				e.emit.AddToScope(connID, DoctorScope(r.Code))
			}
			e.emit.ToConn(connID, EvtYourRole, e.roleReveal(p.ID))
			e.emit.ToConn(connID, EvtGameState, e.gameStateFor(p.ID))
		}
		e.emitRoomState()
		if done != nil {
			done(JoinResult{Accepted: true, Rejoined: !added})
		}
	})
}

// Leave removes a player deliberately, bypassing the reconnection grace.
func (e *Engine) Leave(playerID string) {
	e.Post(func() { e.removePlayer(playerID) })
}

// PlayerTimedOut removes a player whose reconnection grace expired.
func (e *Engine) PlayerTimedOut(playerID string) {
	e.Post(func() { e.removePlayer(playerID) })
}

func (e *Engine) removePlayer(playerID string) {
	r := e.room
	p := r.Player(playerID)
	if p == nil || r.Departed[playerID] {
		return
	}
	name := p.Name
	r.RemovePlayer(playerID)
	e.emit.ToRoom(r.Code, EvtPlayerLeft, map[string]any{
		"player": game.Player{ID: playerID, Name: name},
	})
	e.systemMessage(name + " left the game")
	e.emitRoomState()
	// A departure can complete a unanimous vote.
	if r.Phase == game.PhaseVoting {
		e.completeVotingIfDone()
	}
}

// --- lobby ---------------------------------------------------------------

func (e *Engine) handleReady(connID, playerID string) {
	r := e.room
	if r.Phase != game.PhaseWaiting {
		e.blocked(connID, InPlayerReady, game.ErrWrongPhase.Error())
		return
	}
	if !r.Contains(playerID) {
		e.blocked(connID, InPlayerReady, game.ErrNotInRoster.Error())
		return
	}
	r.Ready[playerID] = true
	ready := make([]string, 0, len(r.Ready))
	for _, p := range r.Players {
		if r.Ready[p.ID] {
			ready = append(ready, p.ID)
		}
	}
	e.emit.ToRoom(r.Code, EvtReadyState, map[string]any{"ready": ready})
	if r.AllReady() {
		e.startGame()
	}
}

func (e *Engine) handleSettings(connID, playerID string, next game.Settings) {
	r := e.room
	reject := func(reason string) {
		e.emit.ToConn(connID, EvtSettingsRejected, BlockedPayload{Action: InSetSettings, Reason: reason})
	}
	switch {
	case playerID != r.HostID:
		reject(game.ErrNotHost.Error())
	case r.Phase != game.PhaseWaiting:
		reject(game.ErrWrongPhase.Error())
	default:
		clean := next.Normalize()
		if r.Settings.DecreasesDurations(clean) {
			reject(game.ErrDurationLowered.Error())
			return
		}
		r.Settings = clean
		e.emit.ToRoom(r.Code, EvtSettingsUpdated, map[string]any{"settings": clean})
	}
}

// --- game start ----------------------------------------------------------

func (e *Engine) startGame() {
	r := e.room
	roles := game.AssignRoles(r.Players, r.Settings, e.rng)
	r.BeginGame(roles)
	e.metrics.GamesStarted.Inc()
	e.log.Info("game started", "players", len(r.Players))

	e.emit.ToRoom(r.Code, EvtRolesAssigned, map[string]any{"players": len(r.Players)})
	for _, p := range r.Players {
		reveal := e.roleReveal(p.ID)
		for _, connID := range e.conns.ConnectionsOf(p.ID) {
			e.emit.ToConn(connID, EvtYourRole, reveal)
			switch roles[p.ID] {
			case game.RoleKiller:
				e.emit.AddToScope(connID, KillerScope(r.Code))
			case game.RoleDoctor:
				e.emit.AddToScope(connID, DoctorScope(r.Code))
			}
		}
	}

	r.Phase = game.PhasePreNight
	e.emit.ToRoom(r.Code, EvtPrestart, PhasePayload{
		Phase:    game.PhasePreNight,
		Message:  "the game is about to begin",
		Duration: int(e.timings.Prestart.Seconds()),
		StartTS:  e.clock.Now().UnixMilli(),
	})
	e.schedule(e.timings.Prestart, e.startNightStart)
}

// roleReveal builds the private your_role payload. Killers learn their
// teammates; nobody else learns anything beyond their own card.
func (e *Engine) roleReveal(playerID string) map[string]any {
	r := e.room
	role := r.Roles[playerID]
	out := map[string]any{"role": role}
	if role == game.RoleKiller {
		mates := []game.Player{}
		for _, id := range r.AliveWithRole(game.RoleKiller) {
			if id == playerID {
				continue
			}
			if p := r.Player(id); p != nil {
				mates = append(mates, *p)
			}
		}
		out["teammates"] = mates
	}
	return out
}

// --- night ---------------------------------------------------------------

func (e *Engine) startNightStart() {
	e.room.BeginRound()
	e.emitPhase(game.PhaseNightStart, "night falls, everyone close your eyes", int(e.timings.Announce.Seconds()))
	e.schedule(e.timings.Announce, e.startKiller)
}

func (e *Engine) startKiller() {
	r := e.room
	dur := r.Settings.KillerDurationS
	e.emitPhase(game.PhaseKiller, "killers, open your eyes and choose a victim", dur)
	e.emit.ToScope(KillerScope(r.Code), EvtPhase, PhasePayload{
		Phase:    game.PhaseKiller,
		Message:  "confer with your team and pick a target",
		Duration: dur,
		StartTS:  e.clock.Now().UnixMilli(),
	})
	e.schedule(time.Duration(dur)*time.Second, e.finishKiller)
}

// finishKiller ends the killer window, whether by action or by deadline.
// The doctor phase is skipped entirely when no doctor is left alive.
func (e *Engine) finishKiller() {
	if len(e.room.AliveWithRole(game.RoleDoctor)) > 0 {
		e.startDoctor()
		return
	}
	e.resolveNight()
}

func (e *Engine) startDoctor() {
	r := e.room
	dur := r.Settings.DoctorDurationS
	e.emitPhase(game.PhaseDoctor, "doctor, open your eyes and choose who to protect", dur)
	e.emit.ToScope(DoctorScope(r.Code), EvtPhase, PhasePayload{
		Phase:    game.PhaseDoctor,
		Message:  "choose who to protect tonight",
		Duration: dur,
		StartTS:  e.clock.Now().UnixMilli(),
	})
	e.schedule(time.Duration(dur)*time.Second, e.resolveNight)
}

// resolveNight applies the recorded actions and opens the day sequence.
// It has no user-visible phase of its own.
func (e *Engine) resolveNight() {
	e.cancelTimer()
	r := e.room
	out := r.ResolveNight()

	payload := NightResultPayload{Result: out.Result, Round: r.Round}
	switch out.Result {
	case game.NightKilled:
		r.Eliminated[out.VictimID] = true
		payload.VictimID = out.VictimID
		payload.VictimRole = out.VictimRole
	case game.NightSaved:
		if saver := r.Player(out.SaverID); saver != nil {
			payload.SaverName = saver.Name
		}
	}
	e.emit.ToRoom(r.Code, EvtNightResult, payload)
	e.lastNight = payload

	e.emitPhase(game.PhaseDayStart, "the sun rises, everyone open your eyes", int(e.timings.Announce.Seconds()))
	e.schedule(e.timings.Announce, e.daySummary)
}

// daySummary shows the night summary, waits out the display pause, then
// evaluates the win. The evaluation must not run before the summary has
// been on screen: clients need to know who died before any game_over.
func (e *Engine) daySummary() {
	r := e.room
	e.emitPhase(game.PhaseDay, "the town wakes to the news", int(e.timings.SummaryPause.Seconds()))
	e.emit.ToRoom(r.Code, EvtNightSummary, e.lastNight)
	e.schedule(e.timings.SummaryPause, func() {
		if ws := r.EvaluateWin(); ws.Over {
			e.endGame(ws)
			return
		}
		e.startVoting()
	})
}

// --- voting --------------------------------------------------------------

func (e *Engine) startVoting() {
	dur := e.room.Settings.VotingDurationS
	e.emitPhase(game.PhaseVoting, "discuss and vote on who to eliminate", dur)
	e.schedule(time.Duration(dur)*time.Second, e.resolveVotes)
}

// completeVotingIfDone resolves early once every living player has voted.
func (e *Engine) completeVotingIfDone() {
	for _, p := range e.room.AlivePlayers() {
		if _, ok := e.room.Votes[p.ID]; !ok {
			return
		}
	}
	e.cancelTimer()
	e.resolveVotes()
}

func (e *Engine) resolveVotes() {
	r := e.room
	r.Phase = game.PhasePostVote
	out := r.TallyVotes()
	if out.Result == game.VoteEliminated {
		r.Eliminated[out.EliminatedID] = true
	}
	e.emit.ToRoom(r.Code, EvtVoteResult, VoteResultPayload{
		Result:       out.Result,
		Reason:       out.Reason,
		EliminatedID: out.EliminatedID,
		Role:         out.Role,
		Counts:       out.Counts,
		SkipCount:    out.SkipCount,
		MaxVotes:     out.MaxVotes,
		Top:          out.Top,
	})
	e.emitRoomState()
	e.schedule(e.timings.PostVotePause, func() {
		if ws := r.EvaluateWin(); ws.Over {
			e.endGame(ws)
			return
		}
		e.startNightStart()
	})
}

// --- game over -----------------------------------------------------------

func (e *Engine) endGame(ws game.WinState) {
	r := e.room
	e.cancelTimer()
	r.Phase = game.PhaseEnded
	r.Winner = ws.Winner
	e.metrics.GamesCompleted.Inc()
	e.log.Info("game over", "winner", ws.Winner, "round", r.Round)

	killerNames := []string{}
	for _, id := range ws.Killers {
		if p := r.Player(id); p != nil {
			killerNames = append(killerNames, p.Name)
		}
	}
	e.emit.ToRoom(r.Code, EvtGameOver, GameOverPayload{
		Winner:  ws.Winner,
		Killers: killerNames,
		Roles:   r.Roles,
	})
	e.schedule(e.timings.EndedPause, e.resetRoom)
}

// resetRoom clears all game state and chat history so the same room code
// hosts a fresh lobby.
func (e *Engine) resetRoom() {
	r := e.room
	e.cancelTimer()
	e.emit.DropScope(KillerScope(r.Code))
	e.emit.DropScope(DoctorScope(r.Code))
	r.Reset()
	e.purgeChat()
	e.emit.ToRoom(r.Code, EvtRoomReset, map[string]any{"room_code": r.Code})
	e.emitRoomState()
	e.lastNight = NightResultPayload{}
}

// purgeChat drops the persisted history for the room and both team
// sub-rooms. Runs off the serializer because the store touches disk.
func (e *Engine) purgeChat() {
	code := e.room.Code
	store, log := e.store, e.log
	go func() {
		if err := store.Purge(context.Background(), code, KillerScope(code), DoctorScope(code)); err != nil {
			log.Error("failed to purge chat history", "err", err)
		}
	}()
}

// --- state queries -------------------------------------------------------

// Roster returns a point-in-time roster snapshot for the HTTP surface.
// Returns nils when the engine has stopped.
func (e *Engine) Roster() ([]game.PlayerView, string) {
	type snap struct {
		players []game.PlayerView
		hostID  string
	}
	ch := make(chan snap, 1)
	e.Post(func() { ch <- snap{e.room.RosterViews(), e.room.HostID} })
	select {
	case s := <-ch:
		return s.players, s.hostID
	case <-e.quit:
		return nil, ""
	}
}

func (e *Engine) gameStateFor(playerID string) map[string]any {
	r := e.room
	state := map[string]any{
		"room_code":  r.Code,
		"phase":      r.Phase,
		"round":      r.Round,
		"players":    r.RosterViews(),
		"host_id":    r.HostID,
		"eliminated": r.EliminatedIDs(),
		"settings":   r.Settings,
		"in_game":    r.InGame,
	}
	if r.InGame {
		state["your_role"] = r.Roles[playerID]
	}
	if r.Winner != game.WinnerNone {
		state["winner"] = r.Winner
	}
	return state
}

func (e *Engine) systemMessage(text string) {
	r := e.room
	msg := ChatMessagePayload{
		ID:    uuid.NewString(),
		From:  ChatSender{ID: "system", Name: "System"},
		Text:  text,
		Scope: ScopePublic,
		TS:    e.clock.Now().UnixMilli(),
	}
	e.emit.ToRoom(r.Code, EvtNewMessage, map[string]any{"message": msg})
	e.persist(msg, r.Code)
}
