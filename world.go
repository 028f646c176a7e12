package main

import (
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
)

const (
	maxNameLength   = 8
	placeholderName = "PLAYER"
)

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

func (r Rect) contains(p Vec) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func (r Rect) overlaps(o Rect) bool {
	return r.MinX < o.MaxX && o.MinX < r.MaxX && r.MinY < o.MaxY && o.MinY < r.MaxY
}

func (r Rect) randomPoint() Vec {
	return Vec{
		X: r.MinX + rand.Float64()*(r.MaxX-r.MinX),
		Y: r.MinY + rand.Float64()*(r.MaxY-r.MinY),
	}
}

// Sprite is the cosmetic avatar assigned to a player at join time.
type Sprite struct {
	ID      int    `json:"id"`
	Color   string `json:"color"`
	Pattern string `json:"pattern"`
}

var (
	spriteColors   = []string{"yellow", "orange", "green", "blue", "purple", "pink", "red", "teal"}
	spritePatterns = []string{"solid", "striped", "spotted", "ringed"}
)

func randomSprite() Sprite {
	return Sprite{
		ID:      rand.IntN(8),
		Color:   spriteColors[rand.IntN(len(spriteColors))],
		Pattern: spritePatterns[rand.IntN(len(spritePatterns))],
	}
}

// Player is owned by the World; everything else holds references only.
type Player struct {
	ID            string
	Name          string
	Pos           Vec
	Score         int
	CurrentAnswer string
	AnsweredAt    time.Time
	LastMoveAt    time.Time
	Sprite        Sprite
}

func (p *Player) answered() bool {
	return p.CurrentAnswer != ""
}

// Obstacle is the roaming bee hazard.
type Obstacle struct {
	Pos    Vec
	Target Vec
	Speed  float64
}

type Direction string

const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

func (d Direction) delta(step float64) (Vec, bool) {
	switch d {
	case DirUp:
		return Vec{Y: -step}, true
	case DirDown:
		return Vec{Y: step}, true
	case DirLeft:
		return Vec{X: -step}, true
	case DirRight:
		return Vec{X: step}, true
	}
	return Vec{}, false
}

// World holds all mutable game state. It is only ever touched from the
// hub goroutine, so it carries no locking of its own.
type World struct {
	game    *GameConfig
	players map[string]*Player
	order   []string
	bee     Obstacle
}

func newWorld(game *GameConfig) *World {
	return &World{
		game:    game,
		players: make(map[string]*Player),
		bee: Obstacle{
			Pos:    game.Bee.Start,
			Target: game.Bee.Start,
			Speed:  game.Bee.Speed,
		},
	}
}

// sanitizeName uppercases the raw name, strips anything outside
// letters/digits/spaces, and caps it at eight characters.
func sanitizeName(raw string) string {
	upper := strings.ToUpper(raw)

	var b strings.Builder
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	if len(name) > maxNameLength {
		name = strings.TrimSpace(name[:maxNameLength])
	}
	if name == "" {
		return placeholderName
	}
	return name
}

func (w *World) randomSpawn() Vec {
	return w.game.Spawn.randomPoint()
}

// addPlayer creates (or replaces) the player for a connection.
func (w *World) addPlayer(id, rawName string) *Player {
	if _, ok := w.players[id]; !ok {
		w.order = append(w.order, id)
	}

	p := &Player{
		ID:     id,
		Name:   sanitizeName(rawName),
		Pos:    w.randomSpawn(),
		Sprite: randomSprite(),
	}
	w.players[id] = p

	return p
}

func (w *World) removePlayer(id string) *Player {
	p, ok := w.players[id]
	if !ok {
		return nil
	}
	delete(w.players, id)

	dst := w.order[:0]
	for _, o := range w.order {
		if o != id {
			dst = append(dst, o)
		}
	}
	w.order = dst

	return p
}

func (w *World) player(id string) *Player {
	return w.players[id]
}

func (w *World) playerCount() int {
	return len(w.players)
}

// move displaces a player one step in the given direction, clamped to
// world bounds, and returns the before/after positions.
func (w *World) move(p *Player, dir Direction) (from, to Vec, ok bool) {
	d, ok := dir.delta(w.game.Movement.Step)
	if !ok {
		return p.Pos, p.Pos, false
	}

	from = p.Pos
	to = Vec{
		X: math.Min(math.Max(from.X+d.X, 0), w.game.World.Width),
		Y: math.Min(math.Max(from.Y+d.Y, 0), w.game.World.Height),
	}
	p.Pos = to

	return from, to, true
}

func (w *World) zoneAt(pos Vec) *Zone {
	for i := range w.game.Zones {
		if w.game.Zones[i].Rect.contains(pos) {
			return &w.game.Zones[i]
		}
	}
	return nil
}

// recordAnswer records a player's first zone entry for the current
// question. It reports whether the answer was recorded; repeat entries
// are no-ops. Scoring happens here, exactly once per question.
func (w *World) recordAnswer(p *Player, letter string, correct bool, now time.Time) bool {
	if p.answered() {
		return false
	}

	p.CurrentAnswer = letter
	p.AnsweredAt = now
	if correct {
		p.Score += w.game.Scoring.Award
	}

	return true
}

// resetForQuestion clears per-question answer state, scatters every
// player back into the spawn band, and parks the bee at its start point.
func (w *World) resetForQuestion() {
	for _, p := range w.players {
		p.CurrentAnswer = ""
		p.AnsweredAt = time.Time{}
		p.Pos = w.randomSpawn()
	}

	w.bee.Pos = w.game.Bee.Start
	w.bee.Target = w.game.Bee.Start
}

func (w *World) answerCounts() map[string]int {
	counts := make(map[string]int, len(w.game.Zones))
	for _, z := range w.game.Zones {
		counts[z.Letter] = 0
	}
	for _, p := range w.players {
		if p.answered() {
			counts[p.CurrentAnswer]++
		}
	}
	return counts
}

// topPlayers ranks players by score descending; ties keep join order.
func (w *World) topPlayers(n int) []*Player {
	ranked := make([]*Player, 0, len(w.order))
	for _, id := range w.order {
		ranked = append(ranked, w.players[id])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
