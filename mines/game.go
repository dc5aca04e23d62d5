package mines

import (
	"github.com/sirupsen/logrus"
)

// Game holds at most one live Round and replaces it as a unit.
type Game struct {
	round *Round
	opts  []Option
	log   logrus.FieldLogger
}

func NewGame(opts ...Option) *Game {
	return &Game{opts: opts, log: newOptions(opts).log}
}

// NewRound discards the current round and starts a new one. On error the
// current round is left as it was.
func (g *Game) NewRound(params Params) error {
	round, err := NewRound(params, g.opts...)
	if err != nil {
		return err
	}
	g.round = round
	g.log.WithFields(logrus.Fields{"size": params.Size, "mines": params.Mines}).Info("Starting a new round")
	return nil
}

func (g *Game) Round() *Round {
	return g.round
}

func (g *Game) State() State {
	if g.round == nil {
		return NotStarted
	}
	return g.round.State()
}

func (g *Game) Move(c Coord) (*MoveResult, error) {
	if g.round == nil {
		return nil, ErrNoRound
	}
	return g.round.Move(c)
}

func (g *Game) CellDisplay(c Coord) (Cell, error) {
	if g.round == nil {
		return Cell{}, ErrNoRound
	}
	return g.round.CellDisplay(c)
}

func (g *Game) CreateCellUpdates(coords []Coord) ([]UpdatedCell, error) {
	if g.round == nil {
		return nil, ErrNoRound
	}
	updates := make([]UpdatedCell, len(coords))
	for i, c := range coords {
		cell, err := g.round.CellDisplay(c)
		if err != nil {
			return nil, err
		}
		updates[i] = UpdatedCell{X: c.X, Y: c.Y, Cell: cell}
	}
	return updates, nil
}

// GetRevealedCellUpdates lists every revealed cell, for clients that need to
// rebuild the whole board.
func (g *Game) GetRevealedCellUpdates() []UpdatedCell {
	if g.round == nil {
		return nil
	}
	grid := g.round.Grid()
	var updates []UpdatedCell
	for _, c := range grid.Coords() {
		if grid.IsRevealed(c) {
			updates = append(updates, UpdatedCell{X: c.X, Y: c.Y, Cell: grid.Display(c)})
		}
	}
	return updates
}
