package mines

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

func Symbol(cell Cell) byte {
	switch cell.Kind {
	case Hidden:
		return '#'
	case Count:
		if cell.Count == 0 {
			return '.'
		}
		return strconv.Itoa(cell.Count)[0]
	case Mine:
		return '*'
	case Detonated:
		return 'X'
	default:
		return '?'
	}
}

// Fprint draws the player's view of the round, one row per y, with column
// and row indices modulo 10.
func Fprint(w io.Writer, r *Round) error {
	return FprintCells(w, r.params.Size, r.grid.Display)
}

// FprintCells draws any size x size board given a display lookup.
func FprintCells(w io.Writer, size int, display func(Coord) Cell) error {
	bw := bufio.NewWriter(w)
	bw.WriteByte('X')
	for x := range size {
		bw.WriteByte(byte('0' + x%10))
	}
	bw.WriteByte('\n')
	for y := range size {
		bw.WriteByte(byte('0' + y%10))
		for x := range size {
			bw.WriteByte(Symbol(display(Coord{X: x, Y: y})))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func (r *Round) String() string {
	var sb strings.Builder
	Fprint(&sb, r)
	return sb.String()
}
