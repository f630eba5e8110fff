// Package engine provides the level-resolution simulator for JS Hero.
//
// The engine package implements the game mechanics including:
//   - Tagged grid cells parsed from map tokens (p, m1, r, w, -)
//   - The Player capability set handed to a solution
//   - Legality checks for steps and attacks (monsters, rocks, the target)
//   - Win detection and finalization of the move log
//   - Level definition loading and validation (JSON or YAML)
//
// Core Types:
//
// Level is an immutable-by-convention grid; every run works on a clone.
// SolutionFunc is a player-authored strategy, usually produced by the script
// package from JavaScript source. Result carries the move log (batches of
// Move values) and the failure message of a run.
//
// Usage:
//
//	level := engine.NewLevel([][]string{
//		{"-", "w", "-"},
//		{"-", "-", "-"},
//		{"-", "p", "-"},
//	})
//
//	result, err := engine.Resolve(level, func(p engine.Player) error {
//		p.TurnLeft()
//		p.TurnLeft()
//		return p.Step()
//	})
//	if err != nil {
//		log.Fatal(err) // the level itself is broken
//	}
//	fmt.Println(result.Moves, result.Message)
//
// Game Rules:
//
// The player starts facing south and must end next to the target. A monster
// next to the player kills it at the next legality check, which runs before
// every step and after every attack. Stepping into anything but an empty cell
// fails the run. Every run ends with the player either winning or dying.
package engine
