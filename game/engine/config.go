package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidateLevelConfig validates a level definition for correctness and playability
func ValidateLevelConfig(config *LevelConfig) error {
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}

	height := len(config.Design)
	if height < MinLevelSize || height > MaxLevelSize {
		return fmt.Errorf("config validation: design must have between %d and %d rows, got %d", MinLevelSize, MaxLevelSize, height)
	}

	width := len(config.Design[0])
	if width < MinLevelSize || width > MaxLevelSize {
		return fmt.Errorf("config validation: design rows must have between %d and %d cells, got %d", MinLevelSize, MaxLevelSize, width)
	}

	players, targets := 0, 0
	seen := make(map[string]bool)
	for y, row := range config.Design {
		if len(row) != width {
			return fmt.Errorf("config validation: row %d must have %d cells to match the first row, got %d", y+1, width, len(row))
		}

		for x, token := range row {
			cell := ParseCell(token)
			switch cell.Kind {
			case KindUnknown:
				return fmt.Errorf("config validation: invalid token '%s' at row %d, col %d", token, y+1, x+1)
			case KindNothing:
				continue
			case KindPlayer:
				players++
			case KindTarget:
				targets++
			}

			if cell.Kind != KindRock && seen[token] {
				return fmt.Errorf("config validation: duplicate entity id '%s' at row %d, col %d", token, y+1, x+1)
			}
			seen[token] = true
		}
	}

	if players != 1 {
		return fmt.Errorf("config validation: design must contain exactly one player (p), got %d", players)
	}
	if targets != 1 {
		return fmt.Errorf("config validation: design must contain exactly one target (w), got %d", targets)
	}

	// The player needs at least one free cell next to the target to be able to win
	level := NewLevel(config.Design)
	target := level.Find(KindTarget)[0]
	if _, ok := ShortestPath(level, level.Find(KindPlayer)[0], target); !ok {
		return fmt.Errorf("config validation: target at (%d, %d) cannot be reached from the player", target.X, target.Y)
	}

	return nil
}

// LoadLevelConfig loads a level definition from a JSON or YAML file
func LoadLevelConfig(filename string) (*LevelConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseLevelConfig(filepath.Ext(filename), data)
	if err != nil {
		return nil, err
	}

	if config.ID == "" {
		config.ID = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	if err := ValidateLevelConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ParseLevelConfig decodes a level definition; ext selects the format (".json", ".yaml" or ".yml")
func ParseLevelConfig(ext string, data []byte) (*LevelConfig, error) {
	var config LevelConfig

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse yaml level: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse json level: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported level format '%s'", ext)
	}

	return &config, nil
}

// Level builds the playable grid for this definition
func (c *LevelConfig) Level() *Level {
	return NewLevel(c.Design)
}

// DefaultLevels returns the built-in level catalogue used when no level directory is configured
func DefaultLevels() []*LevelConfig {
	return []*LevelConfig{
		{
			ID:          "first-steps",
			Name:        "First Steps",
			Description: "The princess is just below you. Walk towards her.",
			Order:       1,
			Design: [][]string{
				{"-", "-", "p", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "w", "-", "-"},
			},
		},
		{
			ID:          "turn-around",
			Name:        "Turn Around",
			Description: "You start facing south. The princess is somewhere else.",
			Order:       2,
			Design: [][]string{
				{"-", "-", "w", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "p", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "-", "-", "-"},
			},
		},
		{
			ID:          "rock-road",
			Name:        "Rock Road",
			Description: "A rock blocks the way. Walk around it.",
			Order:       3,
			Design: [][]string{
				{"-", "-", "p", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "r", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "w", "-", "-"},
			},
		},
		{
			ID:          "orc-guard",
			Name:        "Orc Guard",
			Description: "An orc guards the princess. Attack it before it gets next to you.",
			Order:       4,
			Design: [][]string{
				{"-", "-", "p", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "m1", "-", "-"},
				{"-", "-", "-", "-", "-"},
				{"-", "-", "w", "-", "-"},
			},
		},
		{
			ID:          "gauntlet",
			Name:        "Gauntlet",
			Description: "Rocks and orcs everywhere. Use check() to look before you step.",
			Order:       5,
			Design: [][]string{
				{"-", "-", "p", "-", "-", "-"},
				{"-", "-", "-", "-", "-", "-"},
				{"-", "-", "r", "-", "-", "-"},
				{"-", "-", "-", "-", "-", "-"},
				{"-", "-", "-", "-", "m1", "-"},
				{"r", "-", "-", "-", "-", "-"},
				{"-", "-", "m2", "-", "-", "-"},
				{"-", "-", "-", "-", "-", "-"},
				{"-", "-", "w", "-", "-", "r"},
			},
		},
	}
}
