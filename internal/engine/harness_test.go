package engine

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AshuferMorningstar/Mafia/internal/game"
	"github.com/AshuferMorningstar/Mafia/internal/platform/logger"
	"github.com/AshuferMorningstar/Mafia/internal/platform/metrics"
)

// --- fake clock ----------------------------------------------------------

type fakeTimer struct {
	clk     *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock drives timers manually from the test goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clk: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// due pops the earliest live timer at or before target, or nil.
func (c *fakeClock) due(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var earliest *fakeTimer
	for _, t := range c.timers {
		if t.stopped || t.fired || t.when.After(target) {
			continue
		}
		if earliest == nil || t.when.Before(earliest.when) {
			earliest = t
		}
	}
	if earliest != nil {
		earliest.fired = true
		if c.now.Before(earliest.when) {
			c.now = earliest.when
		}
	}
	return earliest
}

func (c *fakeClock) settle(target time.Time) {
	c.mu.Lock()
	if c.now.Before(target) {
		c.now = target
	}
	c.mu.Unlock()
}

// --- capturing emitter ---------------------------------------------------

type emitted struct {
	kind    string // "room", "scope" or "conn"
	target  string
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	log    []emitted
	scopes map[string]map[string]bool // scope -> connID set
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{scopes: make(map[string]map[string]bool)}
}

func (f *fakeEmitter) record(e emitted) {
	f.mu.Lock()
	f.log = append(f.log, e)
	f.mu.Unlock()
}

func (f *fakeEmitter) ToRoom(roomCode, event string, payload any) {
	f.record(emitted{kind: "room", target: roomCode, event: event, payload: payload})
}

func (f *fakeEmitter) ToScope(scope, event string, payload any) {
	f.record(emitted{kind: "scope", target: scope, event: event, payload: payload})
}

func (f *fakeEmitter) ToConn(connID, event string, payload any) {
	f.record(emitted{kind: "conn", target: connID, event: event, payload: payload})
}

func (f *fakeEmitter) AddToScope(connID, scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scopes[scope] == nil {
		f.scopes[scope] = make(map[string]bool)
	}
	f.scopes[scope][connID] = true
}

func (f *fakeEmitter) DropScope(scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scopes, scope)
}

func (f *fakeEmitter) all(event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.log {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEmitter) toConn(connID, event string) []emitted {
	var out []emitted
	for _, e := range f.all(event) {
		if e.kind == "conn" && e.target == connID {
			out = append(out, e)
		}
	}
	return out
}

// phases lists every room-broadcast phase announcement, in order.
func (f *fakeEmitter) phases() []game.Phase {
	var out []game.Phase
	for _, e := range f.all(EvtPhase) {
		if e.kind != "room" {
			continue
		}
		out = append(out, e.payload.(PhasePayload).Phase)
	}
	return out
}

func (f *fakeEmitter) scopeMembers(scope string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.scopes[scope] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (f *fakeEmitter) clear() {
	f.mu.Lock()
	f.log = nil
	f.mu.Unlock()
}

// --- fake store ----------------------------------------------------------

type fakeStore struct {
	mu     sync.Mutex
	saved  []ChatRecord
	purged []string
}

func (s *fakeStore) Save(_ context.Context, rec ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, rec)
	return nil
}

func (s *fakeStore) Purge(_ context.Context, rooms ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = append(s.purged, rooms...)
	return nil
}

func (s *fakeStore) purgedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.purged))
	copy(out, s.purged)
	return out
}

func (s *fakeStore) savedRecords() []ChatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatRecord, len(s.saved))
	copy(out, s.saved)
	return out
}

// --- fake connection index -----------------------------------------------

// oneConnPerPlayer maps player p to connection "conn-p".
type oneConnPerPlayer struct{}

func (oneConnPerPlayer) ConnectionsOf(playerID string) []string {
	return []string{connOf(playerID)}
}

func connOf(playerID string) string { return "conn-" + playerID }
func playerOf(connID string) string { return strings.TrimPrefix(connID, "conn-") }

// --- harness -------------------------------------------------------------

type harness struct {
	t     *testing.T
	clk   *fakeClock
	em    *fakeEmitter
	store *fakeStore
	eng   *Engine
}

func newHarness(t *testing.T, seed int64, players ...string) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clk:   newFakeClock(),
		em:    newFakeEmitter(),
		store: &fakeStore{},
	}
	h.eng = New("ROOM01", Deps{
		Clock:   h.clk,
		Emitter: h.em,
		Conns:   oneConnPerPlayer{},
		Store:   h.store,
		Log:     logger.NewNop(),
		Metrics: metrics.NewCollector(),
		RNG:     rand.New(rand.NewSource(seed)),
		Timings: DefaultTimings(),
	})
	h.eng.Start()
	t.Cleanup(h.eng.Stop)

	for _, p := range players {
		h.join(p)
	}
	return h
}

// flush waits for the serializer to drain everything posted so far.
func (h *harness) flush() {
	done := make(chan struct{})
	h.eng.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.t.Fatal("engine serializer stalled")
	}
}

// do runs fn on the serializer and waits for it.
func (h *harness) do(fn func(r *game.Room)) {
	h.eng.Post(func() { fn(h.eng.room) })
	h.flush()
}

func (h *harness) join(playerID string) JoinResult {
	h.t.Helper()
	return h.joinAs(playerID, "Player "+playerID)
}

func (h *harness) joinAs(playerID, name string) JoinResult {
	h.t.Helper()
	ch := make(chan JoinResult, 1)
	h.eng.Join(connOf(playerID), game.Player{ID: playerID, Name: name}, func(res JoinResult) {
		ch <- res
	})
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		h.t.Fatal("join did not complete")
		return JoinResult{}
	}
}

func (h *harness) send(playerID, event string, payload string) {
	h.eng.Handle(connOf(playerID), playerID, event, []byte(payload))
	h.flush()
}

func (h *harness) readyAll(players ...string) {
	for _, p := range players {
		h.send(p, InPlayerReady, "{}")
	}
}

// advance moves the fake clock forward, firing due timers one at a time
// and letting the serializer settle between fires so cascading schedules
// resolve deterministically.
func (h *harness) advance(d time.Duration) {
	target := h.clk.Now().Add(d)
	for {
		t := h.clk.due(target)
		if t == nil {
			break
		}
		t.fn()
		h.flush()
	}
	h.clk.settle(target)
	h.flush()
}

// rolesByPlayer reads the private your_role reveals captured so far.
func (h *harness) rolesByPlayer() map[string]game.Role {
	out := make(map[string]game.Role)
	for _, e := range h.em.all(EvtYourRole) {
		if e.kind != "conn" {
			continue
		}
		payload := e.payload.(map[string]any)
		out[playerOf(e.target)] = payload["role"].(game.Role)
	}
	return out
}

// castOf splits the roster by assigned role after a game start.
func (h *harness) castOf(players ...string) (killers, doctors, detectives, civilians []string) {
	roles := h.rolesByPlayer()
	for _, p := range players {
		switch roles[p] {
		case game.RoleKiller:
			killers = append(killers, p)
		case game.RoleDoctor:
			doctors = append(doctors, p)
		case game.RoleDetective:
			detectives = append(detectives, p)
		default:
			civilians = append(civilians, p)
		}
	}
	return
}

// phase reads the room's current phase through the serializer.
func (h *harness) phase() game.Phase {
	var p game.Phase
	h.do(func(r *game.Room) { p = r.Phase })
	return p
}

func (h *harness) requirePhase(want game.Phase) {
	h.t.Helper()
	require.Equal(h.t, want, h.phase())
}
