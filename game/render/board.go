// Package render draws levels and move logs for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/jshero/game/engine"
)

var (
	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444466"))

	playerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	targetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff44ff")).
			Bold(true)

	monsterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444")).
			Bold(true)

	rockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B6914"))

	axisStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	boardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff8844")).
			Bold(true)

	passStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff88")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444")).
			Bold(true)
)

// Glyph returns the single character drawn for a cell
func Glyph(cell engine.Cell) string {
	switch cell.Kind {
	case engine.KindPlayer:
		return "p"
	case engine.KindTarget:
		return "w"
	case engine.KindMonster:
		return "m"
	case engine.KindRock:
		return "#"
	case engine.KindNothing:
		return "·"
	}
	return "?"
}

func styleFor(kind engine.Kind) lipgloss.Style {
	switch kind {
	case engine.KindPlayer:
		return playerStyle
	case engine.KindTarget:
		return targetStyle
	case engine.KindMonster:
		return monsterStyle
	case engine.KindRock:
		return rockStyle
	}
	return emptyStyle
}

// Board draws level with column and row numbers inside a rounded border
func Board(level *engine.Level) string {
	var b strings.Builder

	b.WriteString("   ")
	for x := 0; x < level.Width(); x++ {
		b.WriteString(axisStyle.Render(fmt.Sprintf("%2d", x%100)))
	}
	b.WriteString("\n")

	for y := 0; y < level.Height(); y++ {
		b.WriteString(axisStyle.Render(fmt.Sprintf("%2d ", y)))
		for x := 0; x < level.Width(); x++ {
			cell, _ := level.At(x, y)
			b.WriteString(" " + styleFor(cell.Kind).Render(Glyph(cell)))
		}
		if y < level.Height()-1 {
			b.WriteString("\n")
		}
	}

	return boardStyle.Render(b.String())
}

// Title renders a level heading
func Title(config *engine.LevelConfig) string {
	title := titleStyle.Render(config.Name)
	if config.ID != "" {
		title += axisStyle.Render(" [" + config.ID + "]")
	}
	return title
}

// Outcome renders the verdict line of a run
func Outcome(passed bool, message string, batches int) string {
	verdict := failStyle.Render("✗ FAILED")
	if passed {
		verdict = passStyle.Render("✓ PASSED")
	}

	line := fmt.Sprintf("%s in %d steps", verdict, batches)
	if message != "" {
		line += ": " + message
	}
	return line
}

// Moves lists one batch per line
func Moves(moves []engine.Batch) string {
	var b strings.Builder
	for i, batch := range moves {
		parts := make([]string, len(batch))
		for j, m := range batch {
			parts[j] = m.ID + ":" + string(m.Action)
		}
		fmt.Fprintf(&b, "%3d. %s\n", i+1, strings.Join(parts, " "))
	}
	return b.String()
}
