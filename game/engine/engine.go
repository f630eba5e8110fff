package engine

import "fmt"

// SolutionFunc is a player-authored strategy. It is called once per run with
// a fresh Player; returning an error fails the run with that error's message.
type SolutionFunc func(Player) error

// Resolve runs solution against a private copy of level and returns the
// recorded move log.
//
// Only configuration problems are returned as errors. Every gameplay failure
// (monster, blocked step, target not reached, an error from the solution) is
// reported through Result.Message and Result.Err, and the move log always
// ends with the player winning or dying.
func Resolve(level *Level, solution SolutionFunc) (*Result, error) {
	if level == nil {
		return nil, ErrConfiguration
	}
	if solution == nil {
		return nil, configurationError("Solution function not defined")
	}

	player, err := newRunPlayer(level.Clone())
	if err != nil {
		return nil, err
	}

	runErr := solution(player)
	if player.fatal != nil {
		// a solution that swallowed the failure does not get to replace it
		runErr = player.fatal
	}
	if runErr == nil {
		runErr = player.finish()
	}

	result := &Result{
		Moves: player.finalize(),
		Err:   runErr,
	}
	if runErr != nil {
		result.Message = runErr.Error()
	}

	return result, nil
}

// ResolveConfig is Resolve for a level definition
func ResolveConfig(config *LevelConfig, solution SolutionFunc) (*Result, error) {
	if config == nil {
		return nil, ErrConfiguration
	}
	return Resolve(config.Level(), solution)
}

// Success reports whether the run ended without a failure
func (r *Result) Success() bool {
	return r.Err == nil && r.Message == ""
}

// Passed reports whether the run counts as a cleared level: the first move
// of the final batch is not a death.
func (r *Result) Passed() bool {
	if len(r.Moves) == 0 || len(r.Moves[len(r.Moves)-1]) == 0 {
		return false
	}
	return r.Moves[len(r.Moves)-1][0].Action != ActionDie
}

// Last returns the final batch of the log
func (r *Result) Last() Batch {
	if len(r.Moves) == 0 {
		return nil
	}
	return r.Moves[len(r.Moves)-1]
}

// CheckEntities verifies that every move in the log names an entity present
// in the level, which is what a renderer replaying the log relies on.
func CheckEntities(level *Level, moves []Batch) error {
	known := make(map[string]bool)
	for _, row := range level.grid {
		for _, cell := range row {
			if cell.Kind != KindNothing {
				known[cell.Token] = true
			}
		}
	}

	for i, batch := range moves {
		for _, m := range batch {
			if !known[m.ID] {
				return fmt.Errorf("entity not found: '%s' in batch %d", m.ID, i)
			}
		}
	}

	return nil
}
