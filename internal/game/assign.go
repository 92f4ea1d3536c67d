package game

import "math/rand"

// AssignRoles builds the role multiset for the roster and deals it out.
// Special roles are capped at the roster size in killer, doctor, detective
// order; civilians fill the rest. The shuffle uses the supplied RNG so
// assignments are reproducible under a seed. Players are zipped in roster
// insertion order.
func AssignRoles(players []*Player, s Settings, rng *rand.Rand) map[string]Role {
	n := len(players)
	pool := make([]Role, 0, n)

	appendCapped := func(role Role, count int) {
		for i := 0; i < count && len(pool) < n; i++ {
			pool = append(pool, role)
		}
	}
	appendCapped(RoleKiller, s.KillerCount)
	appendCapped(RoleDoctor, s.DoctorCount)
	appendCapped(RoleDetective, s.DetectiveCount)
	for len(pool) < n {
		pool = append(pool, RoleCivilian)
	}

	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	roles := make(map[string]Role, n)
	for i, p := range players {
		roles[p.ID] = pool[i]
	}
	return roles
}
