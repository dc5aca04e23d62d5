package mines

import (
	"errors"
	"fmt"
)

const (
	DefaultSize  = 10
	DefaultMines = 10
)

var (
	ErrConfiguration     = errors.New("invalid round configuration")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrInvalidPlacement  = errors.New("invalid mine placement")
	ErrNoRound           = errors.New("no round started")
)

type Params struct {
	Size  int
	Mines int
}

func DefaultParams() Params {
	return Params{Size: DefaultSize, Mines: DefaultMines}
}

// Validate requires at least one cell to be left free of mines.
func (p Params) Validate() error {
	if p.Size <= 0 || p.Mines < 0 || p.Mines >= p.Size*p.Size {
		return &InvalidBoardParamsError{Size: p.Size, Mines: p.Mines}
	}
	return nil
}

type InvalidBoardParamsError struct {
	Size  int
	Mines int
}

func (e *InvalidBoardParamsError) Error() string {
	switch {
	case e.Size <= 0:
		return fmt.Sprintf("Cannot create a board with size: %d", e.Size)
	case e.Mines < 0:
		return fmt.Sprintf("Cannot create a board with negative amount of mines: %d", e.Mines)
	case e.Mines >= e.Size*e.Size:
		return fmt.Sprintf("Not enough space for %d mines and a safe cell. (%d >= %d * %d)", e.Mines, e.Mines, e.Size, e.Size)
	default:
		return "Cannot construct board: unknown error"
	}
}

func (e *InvalidBoardParamsError) Unwrap() error {
	return ErrConfiguration
}

type InvalidMoveError struct {
	Coord Coord
	Size  int
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("Move out of range - (%d, %d) - Board (%d, %d)", e.Coord.X, e.Coord.Y, e.Size, e.Size)
}

func (e *InvalidMoveError) Unwrap() error {
	return ErrInvalidCoordinate
}

type MoveResultType int

const (
	NoChange MoveResultType = iota
	MineBlown
	CellRevealed
	GameWon
)

func (t MoveResultType) String() string {
	switch t {
	case NoChange:
		return "NoChange"
	case MineBlown:
		return "MineBlown"
	case CellRevealed:
		return "CellRevealed"
	case GameWon:
		return "GameWon"
	default:
		return "UNKNOWN"
	}
}

// MoveResult reports the state after a move and the cells whose revealed
// status changed during it, in the order they were revealed.
type MoveResult struct {
	Result  MoveResultType
	State   State
	Changed []Coord
}

type UpdatedCell struct {
	X    int
	Y    int
	Cell Cell
}
