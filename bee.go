package main

import (
	"math"
	"math/rand/v2"
)

// maybeRetarget re-aims the bee at a random point in the roam region
// with a fixed per-tick probability, producing erratic wandering.
func (b *Obstacle) maybeRetarget(roam Rect, chance float64) {
	if rand.Float64() < chance {
		b.Target = roam.randomPoint()
	}
}

// stepToward moves the bee one step along the straight line to its
// target. Within one step of the target it stays put, so it never
// overshoots and oscillates.
func (b *Obstacle) stepToward() {
	dx := b.Target.X - b.Pos.X
	dy := b.Target.Y - b.Pos.Y

	dist := math.Hypot(dx, dy)
	if dist <= b.Speed {
		return
	}

	b.Pos.X += dx / dist * b.Speed
	b.Pos.Y += dy / dist * b.Speed
}

// beeCollisions returns the players inside the collision radius who
// have not yet answered the current question, in join order. Players
// with a recorded answer are immune.
func (w *World) beeCollisions() []*Player {
	var hit []*Player
	for _, id := range w.order {
		p := w.players[id]
		if p.answered() {
			continue
		}
		if math.Hypot(p.Pos.X-w.bee.Pos.X, p.Pos.Y-w.bee.Pos.Y) <= w.game.Bee.CollisionRadius {
			hit = append(hit, p)
		}
	}
	return hit
}

// tickBee advances the bee one simulation step. It runs on the hub
// goroutine, interleaved with client events, and only while a question
// is active.
func (h *Hub) tickBee() {
	if h.phase != PhaseQuestionActive {
		return
	}

	w := h.world
	w.bee.maybeRetarget(h.game.Bee.Roam, h.game.Bee.RetargetChance)
	w.bee.stepToward()

	for _, p := range w.beeCollisions() {
		p.Pos = w.randomSpawn()
		logf(h.cfg, "GAMES: Bee stung player %q", p.Name)

		h.deliver(ToEveryone, nil, BeeCollisionMessage{
			Type: "bee-collision",
			ID:   p.ID,
			Name: p.Name,
			Pos:  p.Pos,
		})
	}

	// High-frequency channel: display only, never fanned out to students.
	h.deliver(ToDisplay, nil, BeeUpdateMessage{
		Type: "bee-update",
		Pos:  w.bee.Pos,
	})
}
