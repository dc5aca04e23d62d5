package mines

import (
	"fmt"
	"math/rand/v2"

	"github.com/zyedidia/generic/mapset"
)

// Placer chooses mine positions for a round. Implementations must never
// return firstClick.
type Placer interface {
	Place(size, mines int, firstClick Coord) ([]Coord, error)
}

// RandomPlacer samples uniform coordinates and rejects the first click and
// cells that already hold a mine. A nil Rand uses the global source.
type RandomPlacer struct {
	Rand *rand.Rand
}

func NewRandomPlacer(seed uint64) *RandomPlacer {
	return &RandomPlacer{Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *RandomPlacer) intN(n int) int {
	if p.Rand == nil {
		return rand.IntN(n)
	}
	return p.Rand.IntN(n)
}

func (p *RandomPlacer) Place(size, mines int, firstClick Coord) ([]Coord, error) {
	if err := (Params{Size: size, Mines: mines}).Validate(); err != nil {
		return nil, err
	}
	placed := mapset.New[Coord]()
	positions := make([]Coord, 0, mines)
	for len(positions) < mines {
		c := Coord{X: p.intN(size), Y: p.intN(size)}
		if c == firstClick || placed.Has(c) {
			continue
		}
		placed.Put(c)
		positions = append(positions, c)
	}
	return positions, nil
}

// FixedPlacer always returns the same positions. Used for replays and tests.
type FixedPlacer []Coord

func (f FixedPlacer) Place(size, mines int, firstClick Coord) ([]Coord, error) {
	return append([]Coord(nil), f...), nil
}

// GenerateSolution places mines on a fresh grid away from firstClick and
// fills in every neighbour count. Nothing is written unless the placement is
// valid.
func GenerateSolution(grid *Grid, firstClick Coord, mines int, placer Placer) error {
	if err := (Params{Size: grid.Size, Mines: mines}).Validate(); err != nil {
		return err
	}
	if !grid.InBounds(firstClick) {
		return &InvalidMoveError{Coord: firstClick, Size: grid.Size}
	}
	positions, err := placer.Place(grid.Size, mines, firstClick)
	if err != nil {
		return err
	}
	if err := validatePlacement(grid, positions, mines, firstClick); err != nil {
		return err
	}
	for _, c := range positions {
		grid.Solution[c.X][c.Y] = MineCell()
	}
	for _, c := range grid.Coords() {
		if grid.SolutionAt(c).IsMine() {
			continue
		}
		neighbors := grid.Neighbors(c)
		mined := make([]bool, len(neighbors))
		for i, n := range neighbors {
			mined[i] = grid.SolutionAt(n).IsMine()
		}
		grid.Solution[c.X][c.Y] = CountCell(CountMatching(true, mined))
	}
	return nil
}

func validatePlacement(grid *Grid, positions []Coord, mines int, firstClick Coord) error {
	if len(positions) != mines {
		return fmt.Errorf("%w: placed %d mines, want %d", ErrInvalidPlacement, len(positions), mines)
	}
	seen := mapset.New[Coord]()
	for _, c := range positions {
		switch {
		case !grid.InBounds(c):
			return fmt.Errorf("%w: mine %v outside the %dx%d grid", ErrInvalidPlacement, c, grid.Size, grid.Size)
		case c == firstClick:
			return fmt.Errorf("%w: mine under the first move %v", ErrInvalidPlacement, c)
		case seen.Has(c):
			return fmt.Errorf("%w: duplicate mine at %v", ErrInvalidPlacement, c)
		}
		seen.Put(c)
	}
	return nil
}
