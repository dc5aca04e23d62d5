package client

import (
	"io"
	"slices"
	"sync"

	"github.com/tomasstrnad1997/minesweep/mines"
)

// Board is the client's copy of what the server has revealed.
type Board struct {
	mu     sync.Mutex
	params mines.Params
	cells  [][]mines.Cell
	state  mines.State
}

func NewBoard() *Board {
	return &Board{state: mines.NotStarted}
}

func (b *Board) Reset(params mines.Params) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params = params
	b.cells = make([][]mines.Cell, params.Size)
	for x := range params.Size {
		b.cells[x] = make([]mines.Cell, params.Size)
		for y := range params.Size {
			b.cells[x][y] = mines.HiddenCell()
		}
	}
	b.state = mines.AwaitingFirstMove
}

// Apply writes updates onto the board. Updates outside the board are
// skipped and reported.
func (b *Board) Apply(updates []mines.UpdatedCell) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, u := range updates {
		c := mines.Coord{X: u.X, Y: u.Y}
		if u.X < 0 || u.Y < 0 || u.X >= b.params.Size || u.Y >= b.params.Size {
			err = &mines.InvalidMoveError{Coord: c, Size: b.params.Size}
			continue
		}
		b.cells[u.X][u.Y] = u.Cell
	}
	return err
}

func (b *Board) SetState(state mines.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
}

func (b *Board) State() mines.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Board) Params() mines.Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// Snapshot copies the board, indexed [x][y], so it can be drawn without
// holding the lock.
func (b *Board) Snapshot() (mines.Params, [][]mines.Cell) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cells := make([][]mines.Cell, len(b.cells))
	for x, column := range b.cells {
		cells[x] = slices.Clone(column)
	}
	return b.params, cells
}

func (b *Board) Cell(c mines.Coord) mines.Cell {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cell(c)
}

func (b *Board) cell(c mines.Coord) mines.Cell {
	if c.X < 0 || c.Y < 0 || c.X >= b.params.Size || c.Y >= b.params.Size {
		return mines.HiddenCell()
	}
	return b.cells[c.X][c.Y]
}

func (b *Board) Fprint(w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return mines.FprintCells(w, b.params.Size, b.cell)
}
