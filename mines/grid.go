package mines

import "fmt"

type Coord struct {
	X int
	Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Grid holds the solution and the revealed overlay of one N x N board.
// Both are indexed [x][y].
type Grid struct {
	Size     int
	Solution [][]Cell
	Revealed [][]bool
}

func NewGrid(size int) (*Grid, error) {
	if size <= 0 {
		return nil, &InvalidBoardParamsError{Size: size}
	}
	solution := make([][]Cell, size)
	revealed := make([][]bool, size)
	for x := range size {
		solution[x] = make([]Cell, size)
		revealed[x] = make([]bool, size)
		for y := range size {
			solution[x][y] = CountCell(0)
		}
	}
	return &Grid{Size: size, Solution: solution, Revealed: revealed}, nil
}

func inBounds(c Coord, size int) bool {
	return !(c.X < 0 || c.X >= size || c.Y < 0 || c.Y >= size)
}

// NeighborsOf returns the in-bounds neighbours of c in row-major offset order.
func NeighborsOf(c Coord, size int) []Coord {
	neighbors := make([]Coord, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := Coord{X: c.X + dx, Y: c.Y + dy}
			if inBounds(n, size) {
				neighbors = append(neighbors, n)
			}
		}
	}
	return neighbors
}

func CountMatching[T comparable](value T, values []T) int {
	count := 0
	for _, v := range values {
		if v == value {
			count++
		}
	}
	return count
}

func (g *Grid) InBounds(c Coord) bool {
	return inBounds(c, g.Size)
}

func (g *Grid) Neighbors(c Coord) []Coord {
	return NeighborsOf(c, g.Size)
}

func (g *Grid) SolutionAt(c Coord) Cell {
	return g.Solution[c.X][c.Y]
}

func (g *Grid) IsRevealed(c Coord) bool {
	return g.Revealed[c.X][c.Y]
}

// Display is what a player sees at c.
func (g *Grid) Display(c Coord) Cell {
	if !g.Revealed[c.X][c.Y] {
		return HiddenCell()
	}
	return g.Solution[c.X][c.Y]
}

// Coords lists every coordinate, y outer and x inner.
func (g *Grid) Coords() []Coord {
	coords := make([]Coord, 0, g.Size*g.Size)
	for y := range g.Size {
		for x := range g.Size {
			coords = append(coords, Coord{X: x, Y: y})
		}
	}
	return coords
}

func (g *Grid) MineCount() int {
	mines := 0
	for _, c := range g.Coords() {
		if g.SolutionAt(c).IsMine() {
			mines++
		}
	}
	return mines
}

func (g *Grid) HiddenCount() int {
	hidden := 0
	for _, column := range g.Revealed {
		for _, revealed := range column {
			if !revealed {
				hidden++
			}
		}
	}
	return hidden
}

func (g *Grid) revealAll() []Coord {
	var changed []Coord
	for _, c := range g.Coords() {
		if !g.Revealed[c.X][c.Y] {
			g.Revealed[c.X][c.Y] = true
			changed = append(changed, c)
		}
	}
	return changed
}

func (g *Grid) allSafeRevealed() bool {
	for _, c := range g.Coords() {
		if !g.Revealed[c.X][c.Y] && !g.Solution[c.X][c.Y].IsMine() {
			return false
		}
	}
	return true
}
