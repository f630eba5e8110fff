// Package config provides the level catalogue for JS Hero.
//
// The config package handles:
//   - Loading level definitions from JSON or YAML files
//   - Level validation before anything is cached
//   - Play order (by the order field, then by id)
//   - Saving new levels as JSON
//
// Level Format:
//
// Each file in the levels directory holds one level; the file name without
// its extension is the level id. A level defines:
//   - name and description shown to the learner
//   - order, the position of the level in the progression
//   - design, rows of cell tokens (p player, w target, m<n> monster, r rock, - empty)
//
// Example (YAML):
//
//	name: Orc Guard
//	order: 4
//	design:
//	  - [p, "-", "-"]
//	  - ["-", m1, "-"]
//	  - ["-", "-", w]
//
// When the directory holds no level files, the built-in catalogue from
// engine.DefaultLevels is served instead.
//
// Usage:
//
//	manager, err := config.NewManager("levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadLevel("orc-guard")
//	levels, err := manager.ListLevels()
package config
