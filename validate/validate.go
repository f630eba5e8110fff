// Command validate checks every level file (.json, .yaml, .yml) in a levels
// directory (../levels by default, or the first argument). It checks:
//   - JSON/YAML structure and required fields
//   - A rectangular design made of known tokens
//   - Exactly one player (p) and one princess (w), unique entity ids
//   - That the princess can be reached from the player's start
//   - Duplicate level ids and play orders across files
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/jshero/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	ID     string
	Order  int
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateLevel loads and validates a single level file
func validateLevel(filePath string) ValidationResult {
	base := filepath.Base(filePath)
	result := ValidationResult{
		File:   base,
		ID:     strings.TrimSuffix(base, filepath.Ext(base)),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	level, err := engine.ParseLevelConfig(filepath.Ext(filePath), data)
	if err != nil {
		result.fail("Invalid level file: %v", err)
		return result
	}
	if level.ID != "" && level.ID != result.ID {
		result.fail("Level id '%s' does not match file name '%s'", level.ID, result.ID)
	}
	result.Order = level.Order

	if err := engine.ValidateLevelConfig(level); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	grid := level.Level()
	result.note("Design: %dx%d, %d monsters, %d rocks",
		grid.Width(), grid.Height(), len(grid.Find(engine.KindMonster)), len(grid.Find(engine.KindRock)))

	reach := validateReachability(grid)
	if !reach.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, reach.Errors...)

	if level.Description == "" {
		result.note("No description")
	}
	return result
}

// validateReachability reports how far the princess is from the start and
// whether a monster already stands next to the player.
func validateReachability(grid *engine.Level) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}}

	players := grid.Find(engine.KindPlayer)
	targets := grid.Find(engine.KindTarget)
	if len(players) != 1 || len(targets) != 1 {
		result.fail("Cannot validate reachability: need one player and one princess")
		return result
	}

	distance, ok := engine.ShortestPath(grid, players[0], targets[0])
	if !ok {
		result.fail("Princess at (%d,%d) is unreachable from the player", targets[0].X, targets[0].Y)
		return result
	}
	result.note("Reachability: princess %d steps away", distance)

	for _, n := range engine.Neighbors(players[0]) {
		if grid.Is(n.X, n.Y, engine.KindMonster) {
			result.fail("Monster at (%d,%d) kills the player before the first step", n.X, n.Y)
		}
	}
	return result
}

// validateCatalogue flags ids and play orders shared by several files
func validateCatalogue(results []ValidationResult) []string {
	var problems []string

	files := make(map[string][]string)
	orders := make(map[int][]string)
	for _, r := range results {
		files[r.ID] = append(files[r.ID], r.File)
		if r.Valid {
			orders[r.Order] = append(orders[r.Order], r.ID)
		}
	}

	for id, names := range files {
		if len(names) > 1 {
			sort.Strings(names)
			problems = append(problems, fmt.Sprintf("Level id '%s' is defined by %s", id, strings.Join(names, ", ")))
		}
	}
	for order, ids := range orders {
		if len(ids) > 1 {
			sort.Strings(ids)
			problems = append(problems, fmt.Sprintf("Order %d is shared by %s", order, strings.Join(ids, ", ")))
		}
	}

	sort.Strings(problems)
	return problems
}

func levelFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// main validates each level file, printing a concise report and exiting
// with non-zero status if any are invalid.
func main() {
	levelsDir := "../levels"
	if len(os.Args) > 1 {
		levelsDir = os.Args[1]
	}

	files, err := levelFiles(levelsDir)
	if err != nil {
		fmt.Printf("Error finding level files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No level files found in %s\n", levelsDir)
		os.Exit(1)
	}

	allValid := true
	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		result := validateLevel(file)
		results = append(results, result)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	if problems := validateCatalogue(results); len(problems) > 0 {
		allValid = false
		fmt.Printf("\n%s catalogue\n", strings.Repeat("=", 20))
		for _, p := range problems {
			fmt.Println("  ❌ " + p)
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All levels are valid!")
	} else {
		fmt.Println("❌ Some levels have errors")
		os.Exit(1)
	}
}
