package mines

import (
	"github.com/gammazero/deque"
	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"
)

type State int

const (
	NotStarted State = iota
	AwaitingFirstMove
	InProgress
	Won
	Lost
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case AwaitingFirstMove:
		return "awaiting_first_move"
	case InProgress:
		return "in_progress"
	case Won:
		return "won"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == Won || s == Lost
}

type Option func(*options)

type options struct {
	placer Placer
	log    logrus.FieldLogger
}

func WithPlacer(placer Placer) Option {
	return func(o *options) {
		o.placer = placer
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

func newOptions(opts []Option) options {
	o := options{placer: &RandomPlacer{}, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Round is one play-through. The solution is generated on the first move so
// that the first revealed cell is never a mine. A Round is not safe for
// concurrent use.
type Round struct {
	params Params
	grid   *Grid
	state  State
	placer Placer
	log    logrus.FieldLogger
}

func NewRound(params Params, opts ...Option) (*Round, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	grid, err := NewGrid(params.Size)
	if err != nil {
		return nil, err
	}
	o := newOptions(opts)
	round := &Round{
		params: params,
		grid:   grid,
		state:  AwaitingFirstMove,
		placer: o.placer,
		log: o.log.WithFields(logrus.Fields{
			"size":  params.Size,
			"mines": params.Mines,
		}),
	}
	round.log.Debug("Round created")
	return round, nil
}

func (r *Round) Params() Params {
	return r.params
}

func (r *Round) State() State {
	return r.state
}

func (r *Round) Grid() *Grid {
	return r.grid
}

func (r *Round) CellDisplay(c Coord) (Cell, error) {
	if !r.grid.InBounds(c) {
		return Cell{}, &InvalidMoveError{Coord: c, Size: r.params.Size}
	}
	return r.grid.Display(c), nil
}

func (r *Round) Move(c Coord) (*MoveResult, error) {
	if !r.grid.InBounds(c) {
		return nil, &InvalidMoveError{Coord: c, Size: r.params.Size}
	}
	switch r.state {
	case Won, Lost:
		return &MoveResult{Result: NoChange, State: r.state}, nil
	case AwaitingFirstMove:
		if err := GenerateSolution(r.grid, c, r.params.Mines, r.placer); err != nil {
			return nil, err
		}
		r.state = InProgress
		r.log.WithField("first_move", c).Debug("Solution generated")
	}
	if r.grid.IsRevealed(c) {
		return &MoveResult{Result: NoChange, State: r.state}, nil
	}

	changed := r.reveal(c)
	result := CellRevealed
	if r.state == Lost {
		result = MineBlown
		r.log.WithField("move", c).Info("Mine blown")
	} else if r.grid.allSafeRevealed() {
		r.state = Won
		changed = append(changed, r.grid.revealAll()...)
		result = GameWon
		r.log.WithField("move", c).Info("Round won")
	}
	return &MoveResult{Result: result, State: r.state, Changed: changed}, nil
}

func (r *Round) reveal(c Coord) []Coord {
	if r.grid.IsRevealed(c) {
		return nil
	}
	cell := r.grid.SolutionAt(c)
	if cell.IsMine() {
		r.grid.Solution[c.X][c.Y] = DetonatedCell()
		r.grid.Revealed[c.X][c.Y] = true
		r.state = Lost
		return append([]Coord{c}, r.grid.revealAll()...)
	}
	r.grid.Revealed[c.X][c.Y] = true
	changed := []Coord{c}
	if cell.IsBlank() {
		changed = append(changed, r.floodFill(c)...)
	}
	return changed
}

// floodFill reveals the blank region around origin and its counted border.
// Every cell is enqueued at most once.
func (r *Round) floodFill(origin Coord) []Coord {
	var (
		changed []Coord
		queue   deque.Deque[Coord]
		visited = mapset.New[Coord]()
	)
	visited.Put(origin)
	queue.PushBack(origin)
	for queue.Len() != 0 {
		current := queue.PopFront()
		for _, n := range r.grid.Neighbors(current) {
			if visited.Has(n) || r.grid.IsRevealed(n) {
				continue
			}
			visited.Put(n)
			r.grid.Revealed[n.X][n.Y] = true
			changed = append(changed, n)
			if r.grid.SolutionAt(n).IsBlank() {
				queue.PushBack(n)
			}
		}
	}
	return changed
}
