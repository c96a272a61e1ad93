package combat

import (
	"math"
	"time"
)

// HealthState is one player's health and shield.
// Invariants: 0 <= Current <= Max and 0 <= Shield <= ShieldMax.
type HealthState struct {
	Current            float64
	Max                float64
	Shield             float64
	ShieldMax          float64
	LastDamageTime     time.Time
	IsInvulnerable     bool
	InvulnerabilityEnd time.Time
}

// DamageResult splits an application of damage into its parts.
type DamageResult struct {
	HealthDamage   float64
	ShieldAbsorbed float64
	Blocked        bool // target was invulnerable
}

// HealthManager tracks HealthState per player id.
type HealthManager struct {
	cfg    HealthConfig
	states map[string]*HealthState
	now    func() time.Time
}

// NewHealthManager creates an empty manager.
func NewHealthManager(cfg HealthConfig) *HealthManager {
	return &HealthManager{
		cfg:    cfg,
		states: make(map[string]*HealthState),
		now:    time.Now,
	}
}

// Register starts tracking a player at full health without shield. Already
// tracked players are left unchanged.
func (h *HealthManager) Register(playerID string) {
	if _, ok := h.states[playerID]; ok {
		return
	}
	h.states[playerID] = &HealthState{
		Current:   h.cfg.MaxHealth,
		Max:       h.cfg.MaxHealth,
		ShieldMax: h.cfg.MaxShield,
	}
}

// Remove stops tracking a player.
func (h *HealthManager) Remove(playerID string) {
	delete(h.states, playerID)
}

// State returns a copy of the player's state.
func (h *HealthManager) State(playerID string) (HealthState, bool) {
	s, ok := h.states[playerID]
	if !ok {
		return HealthState{}, false
	}
	h.expire(s)
	return *s, true
}

// ApplyDamage applies amount to the player and returns the health portion
// actually dealt. Shield absorbs first. Invulnerable or untracked players
// take nothing.
func (h *HealthManager) ApplyDamage(playerID string, amount float64) float64 {
	return h.Damage(playerID, amount).HealthDamage
}

// Damage is ApplyDamage with the shield and invulnerability detail. NaN and
// non-positive amounts are ignored; +Inf empties both shield and health.
func (h *HealthManager) Damage(playerID string, amount float64) DamageResult {
	s, ok := h.states[playerID]
	if !ok || !(amount > 0) {
		return DamageResult{}
	}
	h.expire(s)
	if s.IsInvulnerable {
		return DamageResult{Blocked: true}
	}

	shieldDamage := math.Min(s.Shield, amount)
	s.Shield -= shieldDamage
	remaining := amount - shieldDamage

	healthDamage := math.Min(s.Current, remaining)
	s.Current -= healthDamage
	if s.Current < 0 {
		s.Current = 0
	}
	s.LastDamageTime = h.now()

	return DamageResult{HealthDamage: healthDamage, ShieldAbsorbed: shieldDamage}
}

// Respawn restores full health, strips the shield and grants the
// post-respawn invulnerability window.
func (h *HealthManager) Respawn(playerID string) {
	s, ok := h.states[playerID]
	if !ok {
		h.Register(playerID)
		s = h.states[playerID]
	}
	s.Current = s.Max
	s.Shield = 0
	h.setInvulnerable(s, h.cfg.InvulnerabilityDuration)
}

// SetInvulnerable makes the player immune for d.
func (h *HealthManager) SetInvulnerable(playerID string, d time.Duration) {
	if s, ok := h.states[playerID]; ok {
		h.setInvulnerable(s, d)
	}
}

func (h *HealthManager) setInvulnerable(s *HealthState, d time.Duration) {
	if d <= 0 {
		s.IsInvulnerable = false
		s.InvulnerabilityEnd = time.Time{}
		return
	}
	s.IsInvulnerable = true
	s.InvulnerabilityEnd = h.now().Add(d)
}

// AddShield adds shield up to ShieldMax and returns the amount added.
func (h *HealthManager) AddShield(playerID string, amount float64) float64 {
	s, ok := h.states[playerID]
	if !ok || !(amount > 0) {
		return 0
	}
	added := math.Min(amount, s.ShieldMax-s.Shield)
	s.Shield += added
	return added
}

// Heal adds health up to Max and returns the amount healed.
func (h *HealthManager) Heal(playerID string, amount float64) float64 {
	s, ok := h.states[playerID]
	if !ok || !(amount > 0) || s.Current <= 0 {
		return 0
	}
	healed := math.Min(amount, s.Max-s.Current)
	s.Current += healed
	return healed
}

// IsAlive reports whether the player has health left. Untracked players are
// treated as alive so they remain valid hit targets while joining.
func (h *HealthManager) IsAlive(playerID string) bool {
	s, ok := h.states[playerID]
	if !ok {
		return true
	}
	return s.Current > 0
}

// IsInvulnerable reports whether the player currently ignores damage.
func (h *HealthManager) IsInvulnerable(playerID string) bool {
	s, ok := h.states[playerID]
	if !ok {
		return false
	}
	h.expire(s)
	return s.IsInvulnerable
}

// Update clears expired invulnerability windows.
func (h *HealthManager) Update() {
	for _, s := range h.states {
		h.expire(s)
	}
}

func (h *HealthManager) expire(s *HealthState) {
	if s.IsInvulnerable && !h.now().Before(s.InvulnerabilityEnd) {
		s.IsInvulnerable = false
	}
}
