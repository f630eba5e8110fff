// Package script runs learner-written JavaScript against the engine.
//
// Source goes through two steps before it can play a level:
//   - Instrument parses it and guards every loop with a private counter so
//     that a loop which never ends throws instead of hanging the process
//   - Runner.Compile compiles the guarded source and checks that it defines
//     a function named solution
//
// A compiled Script is turned into an engine.SolutionFunc with Solution.
// Each run evaluates the script in a fresh runtime with a wall-clock
// deadline, so runs never share state and can happen concurrently.
//
// Usage:
//
//	runner := script.NewRunner(script.WithLimit(script.Limit{Iterations: 500}))
//	s, err := runner.Compile(`function solution(p) { p.turnLeft(); p.turnLeft(); p.step(); }`)
//	if err != nil {
//		return err // *SyntaxError, *ScriptError or ErrSolutionNotDefined
//	}
//	result, err := engine.Resolve(level, s.Solution(ctx))
//
// The player handle passed to solution exposes turnLeft, turnRight, step,
// attack, check, checkMap and isNextToTarget, plus the read-only x, y,
// direction, target_x and target_y properties.
package script
