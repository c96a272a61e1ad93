package combat

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/duel-arena-server/internal/geom"
)

func newTestRespawn(spawns ...geom.Vector2) *RespawnManager {
	return NewRespawnManager(DefaultConfig().Respawn, spawns, rand.New(rand.NewPCG(3, 4)))
}

func TestSelectSpawnPoint_Scoring(t *testing.T) {
	r := newTestRespawn(geom.Vec2(0, 0), geom.Vec2(20, 0), geom.Vec2(40, 0))
	enemy := geom.Vec2(0, 0)
	death := geom.Vec2(40, 0)

	got, ok := r.SelectSpawnPoint(&enemy, &death)
	require.True(t, ok)
	assert.Equal(t, geom.Vec2(20, 0), got)
}

func TestSelectSpawnPoint_AvoidsEnemy(t *testing.T) {
	r := newTestRespawn(geom.Vec2(5, 0), geom.Vec2(-30, 0))
	enemy := geom.Vec2(0, 0)

	got, ok := r.SelectSpawnPoint(&enemy, nil)
	require.True(t, ok)
	assert.Equal(t, geom.Vec2(-30, 0), got)
}

func TestSelectSpawnPoint_TieGoesToFirst(t *testing.T) {
	r := newTestRespawn(geom.Vec2(10, 0), geom.Vec2(-10, 0), geom.Vec2(0, 10))
	enemy := geom.Vec2(0, 0)

	got, ok := r.SelectSpawnPoint(&enemy, nil)
	require.True(t, ok)
	assert.Equal(t, geom.Vec2(10, 0), got)
}

func TestSelectSpawnPoint_NoEnemyRespectsDeathExclusion(t *testing.T) {
	r := newTestRespawn(geom.Vec2(0, 0), geom.Vec2(50, 0))
	death := geom.Vec2(1, 0)

	for i := 0; i < 20; i++ {
		got, ok := r.SelectSpawnPoint(nil, &death)
		require.True(t, ok)
		assert.Equal(t, geom.Vec2(50, 0), got)
	}
}

func TestSelectSpawnPoint_NoEnemyAllExcluded(t *testing.T) {
	r := newTestRespawn(geom.Vec2(0, 0), geom.Vec2(2, 0))
	death := geom.Vec2(1, 0)

	seen := map[geom.Vector2]bool{}
	for i := 0; i < 50; i++ {
		got, ok := r.SelectSpawnPoint(nil, &death)
		require.True(t, ok)
		seen[got] = true
	}
	assert.Len(t, seen, 2)
}

func TestSelectSpawnPoint_NoSpawns(t *testing.T) {
	r := newTestRespawn()
	_, ok := r.SelectSpawnPoint(nil, nil)
	assert.False(t, ok)
}

func TestRespawn_TimerLifecycle(t *testing.T) {
	r := newTestRespawn(geom.Vec2(0, 0), geom.Vec2(40, 0))
	enemy := geom.Vec2(0, 0)

	timer := r.StartRespawn("p1", geom.Vec2(5, 0), &enemy, ms(1000))
	assert.True(t, timer.RespawnTime.Equal(ms(4000)))
	assert.Equal(t, geom.Vec2(40, 0), timer.SpawnPosition)
	assert.True(t, r.IsRespawning("p1"))

	again := r.StartRespawn("p1", geom.Vec2(9, 9), nil, ms(2000))
	assert.Same(t, timer, again)

	_, ok := r.CompleteRespawn("p1", ms(3999))
	assert.False(t, ok)
	assert.Empty(t, r.Ready(ms(3999)))

	assert.Equal(t, []string{"p1"}, r.Ready(ms(4000)))
	pos, ok := r.CompleteRespawn("p1", ms(4000))
	require.True(t, ok)
	assert.Equal(t, geom.Vec2(40, 0), pos)

	_, ok = r.CompleteRespawn("p1", ms(5000))
	assert.False(t, ok)
	assert.False(t, r.IsRespawning("p1"))
}

func TestRespawn_ReadySortedAndCancel(t *testing.T) {
	r := newTestRespawn(geom.Vec2(0, 0))
	for _, id := range []string{"c", "a", "b"} {
		r.StartRespawn(id, geom.Vec2(0, 0), nil, ms(0))
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.Ready(ms(3000)))

	r.Cancel("b")
	assert.Equal(t, []string{"a", "c"}, r.Ready(ms(3000)))

	r.CancelAll()
	assert.Empty(t, r.Ready(ms(3000)))
}

func TestRespawn_NoSpawnPointsUsesDeathPosition(t *testing.T) {
	r := newTestRespawn()
	timer := r.StartRespawn("p1", geom.Vec2(7, 7), nil, ms(0))
	assert.Equal(t, geom.Vec2(7, 7), timer.SpawnPosition)
}
