package render

import (
	"strings"
	"testing"

	"github.com/wricardo/jshero/game/engine"
)

func TestGlyph(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"p", "p"},
		{"w", "w"},
		{"m1", "m"},
		{"r", "#"},
		{"-", "·"},
		{"??", "?"},
	}

	for _, tt := range tests {
		if got := Glyph(engine.ParseCell(tt.token)); got != tt.want {
			t.Errorf("Glyph(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestBoard(t *testing.T) {
	level := engine.NewLevel([][]string{
		{"p", "-", "r"},
		{"-", "m1", "w"},
	})

	board := Board(level)
	for _, want := range []string{"p", "#", "m", "w", " 0", " 1", " 2"} {
		if !strings.Contains(board, want) {
			t.Errorf("Expected %q in board:\n%s", want, board)
		}
	}
	if strings.Contains(board, "m1") {
		t.Errorf("Expected one glyph per cell, got:\n%s", board)
	}
}

func TestOutcome(t *testing.T) {
	if got := Outcome(true, "", 3); !strings.Contains(got, "PASSED") || !strings.Contains(got, "in 3 steps") {
		t.Errorf("Unexpected pass line: %q", got)
	}
	if got := Outcome(false, "Monster killed you!", 2); !strings.Contains(got, "FAILED") || !strings.HasSuffix(got, ": Monster killed you!") {
		t.Errorf("Unexpected fail line: %q", got)
	}
}

func TestMoves(t *testing.T) {
	got := Moves([]engine.Batch{
		{{ID: "p", Action: engine.ActionAttack}, {ID: "m1", Action: engine.ActionDie}},
		{{ID: "p", Action: engine.ActionWin}, {ID: "w", Action: engine.ActionWin}},
	})

	want := "  1. p:attack m1:die\n  2. p:win w:win\n"
	if got != want {
		t.Errorf("Moves() = %q, want %q", got, want)
	}
}
