package mines

import "strconv"

type CellKind byte

const (
	Hidden CellKind = iota
	Count
	Mine
	Detonated
)

// Cell is what a grid square holds or shows. Count is only meaningful when
// Kind is Count, and a Count of 0 is a blank cell.
type Cell struct {
	Kind  CellKind
	Count int
}

func HiddenCell() Cell {
	return Cell{Kind: Hidden}
}

func CountCell(n int) Cell {
	return Cell{Kind: Count, Count: n}
}

func MineCell() Cell {
	return Cell{Kind: Mine}
}

func DetonatedCell() Cell {
	return Cell{Kind: Detonated}
}

func (c Cell) IsMine() bool {
	return c.Kind == Mine || c.Kind == Detonated
}

func (c Cell) IsBlank() bool {
	return c.Kind == Count && c.Count == 0
}

func (c Cell) String() string {
	switch c.Kind {
	case Hidden:
		return "hidden"
	case Count:
		if c.Count == 0 {
			return "blank"
		}
		return strconv.Itoa(c.Count)
	case Mine:
		return "mine"
	case Detonated:
		return "detonated"
	default:
		return "unknown"
	}
}
