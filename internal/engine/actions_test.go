package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshuferMorningstar/Mafia/internal/game"
)

func (h *harness) lastBlocked(playerID string) BlockedPayload {
	h.t.Helper()
	blocks := h.em.toConn(connOf(playerID), EvtActionBlocked)
	require.NotEmpty(h.t, blocks)
	return blocks[len(blocks)-1].payload.(BlockedPayload)
}

func TestKillerActionValidation(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.startNight()
	killers, doctors, _, civilians := h.castOf(cast...)
	killer, doctor := killers[0], doctors[0]

	// Wrong role.
	h.send(civilians[0], InKillerAction, targetJSON(civilians[1]))
	assert.Equal(t, game.ErrWrongRole.Error(), h.lastBlocked(civilians[0]).Reason)

	// Killers cannot target each other. With one killer that means self.
	h.send(killer, InKillerAction, targetJSON(killer))
	assert.Equal(t, game.ErrKillerTarget.Error(), h.lastBlocked(killer).Reason)

	// Unknown target.
	h.send(killer, InKillerAction, targetJSON("nobody"))
	assert.Equal(t, game.ErrInvalidTarget.Error(), h.lastBlocked(killer).Reason)

	// The doctor holds the wrong role for a strike.
	h.send(doctor, InKillerAction, targetJSON(civilians[0]))
	assert.Equal(t, game.ErrWrongRole.Error(), h.lastBlocked(doctor).Reason)

	// A valid strike moves to the doctor window; repeating it lands out
	// of phase.
	h.send(killer, InKillerAction, targetJSON(civilians[0]))
	h.requirePhase(game.PhaseDoctor)
	h.send(killer, InKillerAction, targetJSON(civilians[1]))
	assert.Equal(t, game.ErrWrongPhase.Error(), h.lastBlocked(killer).Reason)
}

func TestDoctorActionValidation(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.startNight()
	killers, doctors, _, civilians := h.castOf(cast...)
	killer, doctor := killers[0], doctors[0]

	// Too early: still the killer window.
	h.send(doctor, InDoctorAction, targetJSON(doctor))
	assert.Equal(t, game.ErrWrongPhase.Error(), h.lastBlocked(doctor).Reason)

	h.send(killer, InKillerAction, targetJSON(civilians[0]))
	h.requirePhase(game.PhaseDoctor)

	h.send(doctor, InDoctorAction, targetJSON("nobody"))
	assert.Equal(t, game.ErrInvalidTarget.Error(), h.lastBlocked(doctor).Reason)

	// Self-save is legal.
	h.send(doctor, InDoctorAction, targetJSON(doctor))
	night := h.em.all(EvtNightResult)[0].payload.(NightResultPayload)
	assert.Equal(t, game.NightKilled, night.Result, "self-save does not cover the victim")
}

func TestDetectiveIsOneShotPerGame(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.do(func(r *game.Room) { r.Settings.DetectiveCount = 1 })
	h.startNight()
	_, _, detectives, civilians := h.castOf(cast...)
	detective := detectives[0]

	h.send(detective, InDetectiveAction, targetJSON(civilians[0]))
	require.Len(t, h.em.toConn(connOf(detective), EvtDetectiveResult), 1)
	res := h.em.toConn(connOf(detective), EvtDetectiveResult)[0].payload.(DetectiveResultPayload)
	assert.False(t, res.IsKiller)

	h.send(detective, InDetectiveAction, targetJSON(civilians[1]))
	assert.Equal(t, game.ErrAbilityConsumed.Error(), h.lastBlocked(detective).Reason)
	require.Len(t, h.em.toConn(connOf(detective), EvtDetectiveResult), 1)
}

func TestDetectiveWindowSpansNightPhases(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.do(func(r *game.Room) {
		r.Settings.DoctorCount = 0
		r.Settings.DetectiveCount = 1
	})
	h.readyAll(cast...)
	h.requirePhase(game.PhasePreNight)
	killers, _, detectives, _ := h.castOf(cast...)
	detective := detectives[0]

	// The window opens with the night itself, before the killer phase.
	h.advance(3 * time.Second)
	h.requirePhase(game.PhaseNightStart)
	h.send(detective, InDetectiveAction, targetJSON(killers[0]))
	results := h.em.toConn(connOf(detective), EvtDetectiveResult)
	require.Len(t, results, 1)
	assert.True(t, results[0].payload.(DetectiveResultPayload).IsKiller)

	// Daylight shuts the window before any other gate is consulted.
	h.advance(5 * time.Second)
	h.requirePhase(game.PhaseKiller)
	h.send(killers[0], InKillerAction, skipJSON)
	h.advance(5 * time.Second)
	h.requirePhase(game.PhaseDay)
	h.send(detective, InDetectiveAction, targetJSON(killers[0]))
	assert.Equal(t, game.ErrWrongPhase.Error(), h.lastBlocked(detective).Reason)
	require.Len(t, h.em.toConn(connOf(detective), EvtDetectiveResult), 1)
}

func TestVoteValidation(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.do(func(r *game.Room) { r.Settings.DoctorCount = 0 })
	h.startNight()
	killers, _, _, civilians := h.castOf(cast...)

	// Voting has not opened yet.
	h.send(civilians[0], InCastVote, targetJSON(killers[0]))
	assert.Equal(t, game.ErrWrongPhase.Error(), h.lastBlocked(civilians[0]).Reason)

	h.send(killers[0], InKillerAction, targetJSON(civilians[0]))
	h.advance(5 * time.Second)
	h.advance(5 * time.Second)
	h.requirePhase(game.PhaseVoting)

	// The night's victim is dead and cannot vote.
	h.send(civilians[0], InCastVote, targetJSON(killers[0]))
	assert.Equal(t, game.ErrDead.Error(), h.lastBlocked(civilians[0]).Reason)

	// No self-votes, no dead targets.
	h.send(civilians[1], InCastVote, targetJSON(civilians[1]))
	assert.Equal(t, game.ErrSelfVote.Error(), h.lastBlocked(civilians[1]).Reason)
	h.send(civilians[1], InCastVote, targetJSON(civilians[0]))
	assert.Equal(t, game.ErrInvalidTarget.Error(), h.lastBlocked(civilians[1]).Reason)

	// A re-vote replaces the ballot and re-broadcasts the progress
	// without inflating the count.
	h.send(civilians[1], InCastVote, targetJSON(killers[0]))
	h.send(civilians[1], InCastVote, skipJSON)
	casts := h.em.all(EvtVoteCast)
	require.Len(t, casts, 2)
	assert.Equal(t,
		casts[0].payload.(map[string]any)["voted"],
		casts[1].payload.(map[string]any)["voted"])
}

func TestKillerCannotVoteFellowKiller(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.do(func(r *game.Room) {
		r.Settings.KillerCount = 2
		r.Settings.DoctorCount = 0
	})
	h.startNight()
	killers, _, _, civilians := h.castOf(cast...)
	require.Len(t, killers, 2)

	h.send(killers[0], InKillerAction, targetJSON(civilians[0]))
	h.advance(5 * time.Second)
	h.advance(5 * time.Second)
	h.requirePhase(game.PhaseVoting)

	h.send(killers[0], InCastVote, targetJSON(killers[1]))
	assert.Equal(t, game.ErrKillerTarget.Error(), h.lastBlocked(killers[0]).Reason)
	h.do(func(r *game.Room) { assert.Empty(t, r.Votes, "a blocked ballot is not recorded") })

	// A ballot against anyone else goes through.
	h.send(killers[0], InCastVote, targetJSON(civilians[1]))
	h.do(func(r *game.Room) { assert.Len(t, r.Votes, 1) })
}

func TestSettingsGate(t *testing.T) {
	h := newHarness(t, 11, cast...)

	// Only the host can change settings.
	h.send("b", InSetSettings, `{"killer_count":2}`)
	rejects := h.em.toConn(connOf("b"), EvtSettingsRejected)
	require.Len(t, rejects, 1)
	assert.Equal(t, game.ErrNotHost.Error(), rejects[0].payload.(BlockedPayload).Reason)

	// Host update is normalized and broadcast.
	h.send("a", InSetSettings, `{"killer_count":2,"doctor_count":1,"killer_duration_s":30,"doctor_duration_s":120,"voting_duration_s":150,"discussion_duration_s":120}`)
	require.Len(t, h.em.all(EvtSettingsUpdated), 1)
	h.do(func(r *game.Room) {
		assert.Equal(t, 2, r.Settings.KillerCount)
		assert.Equal(t, game.MinDurationS, r.Settings.KillerDurationS, "durations clamp up to the minimum")
		assert.Equal(t, 150, r.Settings.VotingDurationS)
	})

	// Durations may rise but never fall.
	h.send("a", InSetSettings, `{"killer_count":2,"doctor_count":1,"killer_duration_s":120,"doctor_duration_s":120,"voting_duration_s":120,"discussion_duration_s":120}`)
	rejects = h.em.toConn(connOf("a"), EvtSettingsRejected)
	require.Len(t, rejects, 1)
	assert.Equal(t, game.ErrDurationLowered.Error(), rejects[0].payload.(BlockedPayload).Reason)
}

func TestTimeSyncEchoesClientTimestamp(t *testing.T) {
	h := newHarness(t, 11, "a")
	h.send("a", InTimeSync, `{"client_ts":12345}`)

	replies := h.em.toConn(connOf("a"), EvtTimeSync)
	require.Len(t, replies, 1)
	payload := replies[0].payload.(map[string]any)
	assert.Equal(t, int64(12345), payload["client_ts"])
	assert.Equal(t, h.clk.Now().UnixMilli(), payload["server_ts"])
}

func TestGetGameStateSnapshot(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.startNight()

	h.send("a", InGetGameState, "")
	states := h.em.toConn(connOf("a"), EvtGameState)
	require.NotEmpty(t, states)
	state := states[len(states)-1].payload.(map[string]any)
	assert.Equal(t, "ROOM01", state["room_code"])
	assert.Equal(t, game.PhaseKiller, state["phase"])
	assert.Equal(t, h.rolesByPlayer()["a"], state["your_role"])
}

func TestUnknownEventIsIgnoredWithError(t *testing.T) {
	h := newHarness(t, 11, "a")
	h.send("a", "launch_missiles", "{}")
	require.Len(t, h.em.toConn(connOf("a"), EvtError), 1)
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	h := newHarness(t, 11, cast...)
	h.startNight()
	killers, _, _, _ := h.castOf(cast...)

	h.send(killers[0], InKillerAction, `{"target_id":42}`)
	require.Len(t, h.em.toConn(connOf(killers[0]), EvtError), 1)
	h.requirePhase(game.PhaseKiller)
}
