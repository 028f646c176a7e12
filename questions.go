package main

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultGameConfig []byte

type BoundsConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type MovementConfig struct {
	Step float64 `yaml:"step"`
}

type BeeConfig struct {
	Start           Vec     `yaml:"start"`
	Speed           float64 `yaml:"speed"`
	RetargetChance  float64 `yaml:"retarget_chance"`
	CollisionRadius float64 `yaml:"collision_radius"`
	Roam            Rect    `yaml:"roam"`
}

type ScoringConfig struct {
	Award int `yaml:"award"`
}

// Zone binds a fixed world rectangle to one answer letter.
type Zone struct {
	Letter string `yaml:"letter"`
	Rect   Rect   `yaml:"rect"`
}

type Option struct {
	Letter string `yaml:"letter" json:"letter"`
	Text   string `yaml:"text" json:"text"`
}

type Question struct {
	ID      string   `yaml:"id"`
	Prompt  string   `yaml:"prompt"`
	Options []Option `yaml:"options"`
	Correct string   `yaml:"correct"`
}

// GameConfig is the external game definition: world geometry, bee
// tuning, answer zones, and the question bank. Zone layout is
// deliberately configuration rather than code.
type GameConfig struct {
	World     BoundsConfig   `yaml:"world"`
	Spawn     Rect           `yaml:"spawn"`
	Movement  MovementConfig `yaml:"movement"`
	Bee       BeeConfig      `yaml:"bee"`
	Scoring   ScoringConfig  `yaml:"scoring"`
	Zones     []Zone         `yaml:"zones"`
	Questions []Question     `yaml:"questions"`
}

// loadGameConfig parses and validates the game config at path, falling
// back to the embedded default when path is empty.
func loadGameConfig(path string) (*GameConfig, error) {
	data := defaultGameConfig
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("game config: %w", err)
		}
	}

	game := &GameConfig{}
	if err := yaml.Unmarshal(data, game); err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}

	if err := game.validate(); err != nil {
		return nil, fmt.Errorf("game config: %w", err)
	}

	return game, nil
}

func (g *GameConfig) validate() error {
	if g.World.Width <= 0 || g.World.Height <= 0 {
		return fmt.Errorf("world bounds must be positive, got %gx%g", g.World.Width, g.World.Height)
	}

	world := Rect{MaxX: g.World.Width, MaxY: g.World.Height}

	if !world.contains(Vec{X: g.Spawn.MinX, Y: g.Spawn.MinY}) || !world.contains(Vec{X: g.Spawn.MaxX, Y: g.Spawn.MaxY}) {
		return fmt.Errorf("spawn band %+v outside world bounds", g.Spawn)
	}

	if g.Movement.Step <= 0 {
		return fmt.Errorf("movement step must be positive, got %g", g.Movement.Step)
	}

	if g.Bee.Speed <= 0 || g.Bee.CollisionRadius <= 0 {
		return fmt.Errorf("bee speed and collision radius must be positive")
	}
	if g.Bee.RetargetChance < 0 || g.Bee.RetargetChance > 1 {
		return fmt.Errorf("bee retarget chance must be within [0,1], got %g", g.Bee.RetargetChance)
	}
	if !world.contains(g.Bee.Start) {
		return fmt.Errorf("bee start %+v outside world bounds", g.Bee.Start)
	}

	if g.Scoring.Award <= 0 {
		return fmt.Errorf("scoring award must be positive, got %d", g.Scoring.Award)
	}

	if len(g.Zones) == 0 {
		return fmt.Errorf("at least one answer zone is required")
	}
	letters := make(map[string]bool, len(g.Zones))
	for i, z := range g.Zones {
		if z.Letter == "" {
			return fmt.Errorf("zone %d has no letter", i)
		}
		if letters[z.Letter] {
			return fmt.Errorf("duplicate zone letter %q", z.Letter)
		}
		letters[z.Letter] = true

		if !world.contains(Vec{X: z.Rect.MinX, Y: z.Rect.MinY}) || !world.contains(Vec{X: z.Rect.MaxX, Y: z.Rect.MaxY}) {
			return fmt.Errorf("zone %q outside world bounds", z.Letter)
		}
		for _, prev := range g.Zones[:i] {
			if z.Rect.overlaps(prev.Rect) {
				return fmt.Errorf("zones %q and %q overlap", prev.Letter, z.Letter)
			}
		}
	}

	if len(g.Questions) == 0 {
		return fmt.Errorf("at least one question is required")
	}
	for i, q := range g.Questions {
		if q.Prompt == "" {
			return fmt.Errorf("question %d has no prompt", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %q needs at least two options", q.ID)
		}
		correctFound := false
		for _, o := range q.Options {
			if o.Letter == q.Correct {
				correctFound = true
			}
			if !letters[o.Letter] {
				return fmt.Errorf("question %q option %q has no matching zone", q.ID, o.Letter)
			}
		}
		if !correctFound {
			return fmt.Errorf("question %q: correct letter %q not among options", q.ID, q.Correct)
		}
	}

	return nil
}

// question returns the bank entry at index i; the caller keeps i in range.
func (g *GameConfig) question(i int) Question {
	return g.Questions[i]
}
