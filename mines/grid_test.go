package mines_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/tomasstrnad1997/minesweep/mines"
)

func TestNewGridRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1, -10} {
		grid, err := mines.NewGrid(size)
		if err == nil {
			t.Fatalf("NewGrid(%d) succeeded, want error", size)
		}
		if grid != nil {
			t.Fatalf("NewGrid(%d) returned a grid together with an error", size)
		}
		if !errors.Is(err, mines.ErrConfiguration) {
			t.Fatalf("NewGrid(%d) error %v is not ErrConfiguration", size, err)
		}
	}
}

func TestNewGridStartsHiddenAndBlank(t *testing.T) {
	grid, err := mines.NewGrid(4)
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	if got := len(grid.Coords()); got != 16 {
		t.Fatalf("len(Coords()) = %d, want 16", got)
	}
	for _, c := range grid.Coords() {
		if grid.IsRevealed(c) {
			t.Fatalf("cell %v revealed on a fresh grid", c)
		}
		if got := grid.SolutionAt(c); got != mines.CountCell(0) {
			t.Fatalf("SolutionAt(%v) = %v, want blank", c, got)
		}
		if got := grid.Display(c); got != mines.HiddenCell() {
			t.Fatalf("Display(%v) = %v, want hidden", c, got)
		}
	}
	if got := grid.HiddenCount(); got != 16 {
		t.Fatalf("HiddenCount() = %d, want 16", got)
	}
}

func TestNeighborsOfCounts(t *testing.T) {
	tests := []struct {
		name string
		c    mines.Coord
		size int
		want int
	}{
		{"corner top left", mines.Coord{X: 0, Y: 0}, 5, 3},
		{"corner bottom right", mines.Coord{X: 4, Y: 4}, 5, 3},
		{"top edge", mines.Coord{X: 2, Y: 0}, 5, 5},
		{"left edge", mines.Coord{X: 0, Y: 3}, 5, 5},
		{"interior", mines.Coord{X: 2, Y: 2}, 5, 8},
		{"single cell", mines.Coord{X: 0, Y: 0}, 1, 0},
		{"two by two", mines.Coord{X: 1, Y: 0}, 2, 3},
	}
	for _, tc := range tests {
		got := mines.NeighborsOf(tc.c, tc.size)
		if len(got) != tc.want {
			t.Errorf("%s: NeighborsOf(%v, %d) has %d cells, want %d", tc.name, tc.c, tc.size, len(got), tc.want)
		}
		for _, n := range got {
			if n == tc.c {
				t.Errorf("%s: NeighborsOf(%v) contains the cell itself", tc.name, tc.c)
			}
			if n.X < 0 || n.Y < 0 || n.X >= tc.size || n.Y >= tc.size {
				t.Errorf("%s: neighbour %v out of bounds", tc.name, n)
			}
		}
	}
}

func TestNeighborsOfOrder(t *testing.T) {
	want := []mines.Coord{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0},
		{X: 0, Y: 1}, {X: 2, Y: 1},
		{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2},
	}
	got := mines.NeighborsOf(mines.Coord{X: 1, Y: 1}, 3)
	if !slices.Equal(got, want) {
		t.Fatalf("NeighborsOf((1, 1), 3) = %v, want %v", got, want)
	}
	again := mines.NeighborsOf(mines.Coord{X: 1, Y: 1}, 3)
	if !slices.Equal(got, again) {
		t.Fatalf("NeighborsOf is not deterministic: %v vs %v", got, again)
	}
}

func TestCountMatching(t *testing.T) {
	if got := mines.CountMatching(true, []bool{true, false, true, true}); got != 3 {
		t.Errorf("CountMatching(true, ...) = %d, want 3", got)
	}
	if got := mines.CountMatching(9, []int{}); got != 0 {
		t.Errorf("CountMatching on empty slice = %d, want 0", got)
	}
	if got := mines.CountMatching(mines.MineCell(), []mines.Cell{mines.MineCell(), mines.CountCell(1), mines.DetonatedCell()}); got != 1 {
		t.Errorf("CountMatching(MineCell) = %d, want 1", got)
	}
}

func TestCellString(t *testing.T) {
	tests := []struct {
		cell mines.Cell
		want string
	}{
		{mines.HiddenCell(), "hidden"},
		{mines.CountCell(0), "blank"},
		{mines.CountCell(3), "3"},
		{mines.CountCell(8), "8"},
		{mines.MineCell(), "mine"},
		{mines.DetonatedCell(), "detonated"},
	}
	for _, tc := range tests {
		if got := tc.cell.String(); got != tc.want {
			t.Errorf("%#v.String() = %q, want %q", tc.cell, got, tc.want)
		}
	}
	if !mines.DetonatedCell().IsMine() {
		t.Errorf("detonated cell should count as a mine")
	}
	if mines.CountCell(1).IsBlank() || !mines.CountCell(0).IsBlank() {
		t.Errorf("IsBlank only holds for a zero count")
	}
}
