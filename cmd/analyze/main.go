// Command analyze prints quick, human-readable heuristics about the levels in
// a levels directory (the built-in catalogue when none is given). It shows
// each board and summarizes its size, entities, the shortest walk to the
// princess and the monsters standing on or next to that walk.
package main

import (
	"fmt"
	"os"

	"github.com/wricardo/jshero/game/config"
	"github.com/wricardo/jshero/game/engine"
	"github.com/wricardo/jshero/game/render"
)

// Analysis holds the heuristics computed for one level
type Analysis struct {
	ID       string
	Name     string
	Width    int
	Height   int
	Monsters int
	Rocks    int

	// Distance is the number of steps from the start to a cell next to the
	// princess, ignoring monsters; Reachable is false when rocks block it.
	Distance  int
	Reachable bool

	// Straight is true when the princess lies due south of the start, so
	// the walk needs no turn from the initial heading.
	Straight bool

	// Guards are monsters adjacent to the princess: they must be attacked
	// before the level can be won.
	Guards []engine.Position
}

// Difficulty is a rough score used to sanity-check the play order
func (a Analysis) Difficulty() int {
	if !a.Reachable {
		return 0
	}
	score := a.Distance + 3*a.Monsters + len(a.Guards)
	if !a.Straight {
		score += 2
	}
	return score
}

func analyzeLevel(level *engine.LevelConfig) Analysis {
	grid := level.Level()
	a := Analysis{
		ID:       level.ID,
		Name:     level.Name,
		Width:    grid.Width(),
		Height:   grid.Height(),
		Monsters: len(grid.Find(engine.KindMonster)),
		Rocks:    len(grid.Find(engine.KindRock)),
	}

	players := grid.Find(engine.KindPlayer)
	targets := grid.Find(engine.KindTarget)
	if len(players) != 1 || len(targets) != 1 {
		a.Distance = engine.UnreachableDistance
		return a
	}

	a.Distance, a.Reachable = engine.ShortestPath(grid, players[0], targets[0])
	a.Straight = targets[0].X == players[0].X && targets[0].Y > players[0].Y

	for _, n := range engine.Neighbors(targets[0]) {
		if grid.Is(n.X, n.Y, engine.KindMonster) {
			a.Guards = append(a.Guards, n)
		}
	}
	return a
}

func printAnalysis(level *engine.LevelConfig, a Analysis) {
	fmt.Println(render.Title(level))
	fmt.Println(render.Board(level.Level()))
	fmt.Printf("Size: %d x %d\n", a.Width, a.Height)
	fmt.Printf("Monsters: %d, Rocks: %d\n", a.Monsters, a.Rocks)

	if !a.Reachable {
		fmt.Printf("⚠️  CRITICAL: the princess cannot be reached from the start\n")
		return
	}

	fmt.Printf("Shortest walk: %d steps\n", a.Distance)
	if a.Straight {
		fmt.Println("No turns needed")
	}
	if len(a.Guards) > 0 {
		fmt.Printf("⚠️  %d monsters guard the princess:", len(a.Guards))
		for _, g := range a.Guards {
			fmt.Printf(" (%d, %d)", g.X, g.Y)
		}
		fmt.Println()
	}
	fmt.Printf("Difficulty: %d\n", a.Difficulty())
}

func loadLevels(args []string) ([]*engine.LevelConfig, error) {
	if len(args) == 0 {
		return engine.DefaultLevels(), nil
	}

	manager, err := config.NewManager(args[0])
	if err != nil {
		return nil, err
	}
	return manager.Levels()
}

func main() {
	levels, err := loadLevels(os.Args[1:])
	if err != nil {
		fmt.Printf("Error loading levels: %v\n", err)
		os.Exit(1)
	}

	previous := -1
	for _, level := range levels {
		fmt.Printf("\n=== Analyzing %s ===\n", level.ID)
		a := analyzeLevel(level)
		printAnalysis(level, a)

		if a.Reachable && a.Difficulty() < previous {
			fmt.Printf("ℹ️  Easier than the level before it\n")
		}
		previous = a.Difficulty()
	}
}
