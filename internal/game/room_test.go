package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddPlayerAssignsHostAndDeduplicates(t *testing.T) {
	r := NewRoom("ROOM03")

	assert.True(t, r.AddPlayer(Player{ID: "a", Name: "Ana"}))
	assert.Equal(t, "a", r.HostID)

	assert.True(t, r.AddPlayer(Player{ID: "b", Name: "Bea"}))
	assert.False(t, r.AddPlayer(Player{ID: "a", Name: "Ana"}), "rejoin does not grow the roster")
	require.Len(t, r.Players, 2)
	assert.Equal(t, "a", r.HostID)
}

func TestNameTakenIgnoresCaseAndOwner(t *testing.T) {
	r := NewRoom("ROOM03")
	r.AddPlayer(Player{ID: "a", Name: "Ana"})
	r.AddPlayer(Player{ID: "b", Name: "Bea"})

	assert.True(t, r.NameTaken("  ANA ", "x"))
	assert.False(t, r.NameTaken("Ana", "a"), "a player keeps their own name")
	assert.False(t, r.NameTaken("Cleo", "x"))

	// A departed player's name is free again.
	r.InGame = true
	r.RemovePlayer("b")
	assert.False(t, r.NameTaken("bea", "x"))
}

func TestRemovePlayerInLobbyDropsEntry(t *testing.T) {
	r := NewRoom("ROOM03")
	r.AddPlayer(Player{ID: "a", Name: "Ana"})
	r.AddPlayer(Player{ID: "b", Name: "Bea"})
	r.Ready["a"] = true

	r.RemovePlayer("a")
	assert.False(t, r.Contains("a"))
	assert.Equal(t, "b", r.HostID, "host is promoted")
	assert.False(t, r.Ready["a"])
}

func TestRemovePlayerMidGameKeepsRosterEntry(t *testing.T) {
	r := sixPlayerGame()
	r.RemovePlayer("a")

	assert.True(t, r.Contains("a"), "departed players stay visible")
	assert.True(t, r.Departed["a"])
	assert.False(t, r.IsAlive("a"))
	assert.Equal(t, "b", r.HostID)
}

func TestAllReady(t *testing.T) {
	r := NewRoom("ROOM03")
	assert.False(t, r.AllReady(), "empty room never starts")

	r.AddPlayer(Player{ID: "a", Name: "Ana"})
	r.AddPlayer(Player{ID: "b", Name: "Bea"})
	r.Ready["a"] = true
	assert.False(t, r.AllReady())

	r.Ready["b"] = true
	assert.True(t, r.AllReady())
}

func TestBeginRoundClearsActionState(t *testing.T) {
	r := sixPlayerGame()
	r.NightKill = &NightAction{ActorID: "a", TargetID: "d"}
	r.DoctorSave = &NightAction{ActorID: "b", TargetID: "d"}
	r.Votes["a"] = vote("b")

	round := r.Round
	r.BeginRound()
	assert.Equal(t, round+1, r.Round)
	assert.Nil(t, r.NightKill)
	assert.Nil(t, r.DoctorSave)
	assert.Empty(t, r.Votes)
}

func TestResetReturnsToLobbyAndDropsDeparted(t *testing.T) {
	r := sixPlayerGame()
	r.Eliminated["d"] = true
	r.Departed["a"] = true
	r.promoteHost()

	r.Reset()
	assert.Equal(t, PhaseWaiting, r.Phase)
	assert.False(t, r.InGame)
	assert.False(t, r.Contains("a"), "departed players are dropped on reset")
	assert.True(t, r.Contains("d"), "eliminated players come back for the next game")
	assert.True(t, r.IsAlive("d"))
	assert.Empty(t, r.Roles)
	assert.Equal(t, "b", r.HostID)
}

func TestSettingsNormalizeClampsDurations(t *testing.T) {
	s := Settings{
		KillerCount:     -1,
		KillerDurationS: 10,
		DoctorDurationS: 1000,
		VotingDurationS: 200,
	}.Normalize()

	assert.Equal(t, 0, s.KillerCount)
	assert.Equal(t, MinDurationS, s.KillerDurationS)
	assert.Equal(t, MaxDurationS, s.DoctorDurationS)
	assert.Equal(t, 200, s.VotingDurationS)
}

func TestSettingsDecreasesDurations(t *testing.T) {
	cur := DefaultSettings()
	next := cur
	next.VotingDurationS = MaxDurationS
	assert.False(t, cur.DecreasesDurations(next))

	lower := cur
	lower.KillerDurationS = MinDurationS
	cur.KillerDurationS = 200
	assert.True(t, cur.DecreasesDurations(lower))
}
