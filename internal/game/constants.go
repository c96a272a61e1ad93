package game

import "time"

// Player limits
const (
	MaxPlayers = 2
)

// Movement (metres, seconds)
const (
	MoveSpeed      = 8.0
	DashMultiplier = 1.4
	PlayerRadius   = 0.5
	PlayerHeight   = 1.8
	JumpAirtime    = 500 * time.Millisecond
)

// Shots leave this far outside the shooter's body.
const MuzzleGap = 0.1

// Simulation timing
const (
	TickRate         = 60 // ticks per second
	SnapshotEvery    = 3  // ticks between snapshot broadcasts
	MaxInputsPerTick = 8
)
