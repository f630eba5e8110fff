package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/jshero/game/config"
	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/render"
)

// loadCatalogue returns the levels of dir in play order, or the built-in
// catalogue when dir cannot be opened
func loadCatalogue(dir string, logger *log.Logger) ([]*engine.LevelConfig, error) {
	manager, err := config.NewManager(dir, config.WithLogger(logger))
	if err != nil {
		logger.Warn("using built-in levels", "err", err)
		return engine.DefaultLevels(), nil
	}
	return manager.Levels()
}

func selectLevel(levels []*engine.LevelConfig, id string) ([]*engine.LevelConfig, error) {
	if id == "" {
		return levels, nil
	}
	for _, level := range levels {
		if level.ID == id {
			return []*engine.LevelConfig{level}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", config.ErrLevelNotFound, id)
}

func readScript(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one script file, got %d arguments", cmd.Args().Len())
	}
	data, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

// runAction runs a solution file against every level, or the one named by
// --level, and fails when any of them is not passed
func runAction(ctx context.Context, cmd *cli.Command) error {
	logger := log.FromContext(ctx)
	cfg := settingsFromCommand(cmd)
	out := cmd.Root().Writer

	source, err := readScript(cmd)
	if err != nil {
		return err
	}

	compiled, err := cfg.newRunner(logger).Compile(source)
	if err != nil {
		return err
	}

	levels, err := loadCatalogue(cfg.LevelsDir, logger)
	if err != nil {
		return err
	}
	levels, err = selectLevel(levels, cmd.String("level"))
	if err != nil {
		return err
	}

	failed := 0
	for _, level := range levels {
		passed, err := runLevel(ctx, out, compiled, level, cmd.Bool("moves"))
		if err != nil {
			return err
		}
		if !passed {
			failed++
		}
	}

	fmt.Fprintf(out, "\n%d/%d levels passed\n", len(levels)-failed, len(levels))
	if failed > 0 {
		return fmt.Errorf("%d levels failed", failed)
	}
	return nil
}

type levelRunner interface {
	Run(ctx context.Context, level *engine.Level) (*engine.Result, error)
}

func runLevel(ctx context.Context, out io.Writer, s levelRunner, level *engine.LevelConfig, moves bool) (bool, error) {
	fmt.Fprintln(out, render.Title(level))
	fmt.Fprintln(out, render.Board(level.Level()))

	result, err := s.Run(ctx, level.Level())
	if err != nil {
		return false, fmt.Errorf("level %s: %w", level.ID, err)
	}

	fmt.Fprintln(out, render.Outcome(result.Passed(), result.Message, len(result.Moves)))
	if moves {
		fmt.Fprint(out, render.Moves(result.Moves))
	}
	fmt.Fprintln(out)
	return result.Passed(), nil
}

// instrumentAction prints the guarded form of a script
func instrumentAction(ctx context.Context, cmd *cli.Command) error {
	cfg := settingsFromCommand(cmd)

	source, err := readScript(cmd)
	if err != nil {
		return err
	}

	instrumented, err := cfg.newRunner(log.FromContext(ctx)).Instrument(source)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, instrumented)
	return nil
}

// levelsAction draws every level of the catalogue
func levelsAction(ctx context.Context, cmd *cli.Command) error {
	cfg := settingsFromCommand(cmd)
	out := cmd.Root().Writer

	levels, err := loadCatalogue(cfg.LevelsDir, log.FromContext(ctx))
	if err != nil {
		return err
	}

	for i, level := range levels {
		fmt.Fprintf(out, "%d. %s\n", i+1, render.Title(level))
		if level.Description != "" {
			fmt.Fprintln(out, level.Description)
		}
		fmt.Fprintln(out, render.Board(level.Level()))
		fmt.Fprintln(out)
	}
	return nil
}
