package client

import (
	"image"
	"image/color"
	"strconv"

	"gioui.org/io/event"
	"gioui.org/io/input"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/tomasstrnad1997/minesweep/mines"
	"github.com/tomasstrnad1997/minesweep/protocol"
)

const (
	cellSpacing int = 2
	cellSizeDp      = 25
)

var (
	tileColors = map[mines.CellKind]color.NRGBA{
		mines.Hidden:    {R: 0xA5, G: 0x2A, B: 0x2A, A: 0xFF},
		mines.Mine:      {R: 0x00, G: 0x00, B: 0x00, A: 0xFF},
		mines.Detonated: {R: 0xFF, G: 0x00, B: 0x00, A: 0xFF},
	}
	blankColor = color.NRGBA{R: 0x00, G: 0x80, B: 0x00, A: 0xFF}
	countColor = color.NRGBA{R: 0x87, G: 0xCE, B: 0xEB, A: 0xFF}
	markColor  = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// CellColorAndMark gives the fill and the label drawn for a cell.
func CellColorAndMark(cell mines.Cell) (c color.NRGBA, mark string) {
	switch cell.Kind {
	case mines.Count:
		if cell.Count == 0 {
			return blankColor, ""
		}
		return countColor, strconv.Itoa(cell.Count)
	case mines.Mine:
		return tileColors[mines.Mine], "*"
	case mines.Detonated:
		return tileColors[mines.Detonated], "X"
	default:
		return tileColors[mines.Hidden], ""
	}
}

type cellTag struct {
	coord mines.Coord
}

// BoardView draws a client's board and turns primary clicks on cells into
// moves.
type BoardView struct {
	client *Client
	theme  *material.Theme
	tags   [][]*cellTag
}

func NewBoardView(client *Client, th *material.Theme) *BoardView {
	return &BoardView{client: client, theme: th}
}

func (view *BoardView) resize(size int) {
	view.tags = make([][]*cellTag, size)
	for x := range size {
		view.tags[x] = make([]*cellTag, size)
		for y := range size {
			view.tags[x][y] = &cellTag{coord: mines.Coord{X: x, Y: y}}
		}
	}
}

func (view *BoardView) Layout(gtx layout.Context) layout.Dimensions {
	params, cells := view.client.Board().Snapshot()
	if len(view.tags) != params.Size {
		view.resize(params.Size)
	}
	cellSize := int(gtx.Metric.PxPerDp * cellSizeDp)
	total := params.Size*cellSize + max(params.Size-1, 0)*cellSpacing
	offset := image.Point{X: 10, Y: 10}
	defer op.Offset(offset).Push(gtx.Ops).Pop()
	for x := range params.Size {
		for y := range params.Size {
			view.createCell(gtx, cellSize, view.tags[x][y], cells[x][y])
		}
	}
	return layout.Dimensions{
		Size: image.Point{X: total + offset.X*2, Y: total + offset.Y*2},
	}
}

func (view *BoardView) createCell(gtx layout.Context, cellSize int, tag *cellTag, cell mines.Cell) {
	r := image.Rectangle{Max: image.Point{X: cellSize, Y: cellSize}}
	offset := image.Point{X: (cellSpacing + cellSize) * tag.coord.X, Y: (cellSpacing + cellSize) * tag.coord.Y}
	defer op.Offset(offset).Push(gtx.Ops).Pop()
	defer clip.Rect(r).Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, tag)
	if readCellPresses(tag, gtx.Source) {
		if err := view.client.Execute(Command{Kind: MoveCmd, Coord: tag.coord}); err != nil {
			view.client.log.WithError(err).Warn("Failed to send move")
		}
	}
	c, mark := CellColorAndMark(cell)
	paint.ColorOp{Color: c}.Add(gtx.Ops)
	paint.PaintOp{}.Add(gtx.Ops)
	view.drawMark(gtx, cellSize, mark)
}

// readCellPresses drains the cell's pointer events and reports whether the
// primary button went down on it.
func readCellPresses(tag *cellTag, q input.Source) bool {
	pressed := false
	for {
		ev, ok := q.Event(pointer.Filter{
			Target: tag,
			Kinds:  pointer.Press | pointer.Release,
		})
		if !ok {
			break
		}
		if x, ok := ev.(pointer.Event); ok && x.Kind == pointer.Press && x.Buttons.Contain(pointer.ButtonPrimary) {
			pressed = true
		}
	}
	return pressed
}

func (view *BoardView) drawMark(gtx layout.Context, cellSize int, mark string) {
	if mark == "" {
		return
	}
	offset := image.Point{X: cellSize / 4, Y: cellSize / 8}
	defer op.Offset(offset).Push(gtx.Ops).Pop()
	gtx.Constraints.Min = image.Point{}
	label := material.Label(view.theme, unit.Sp(18), mark)
	label.Color = markColor
	label.Layout(gtx)
}

type Menu struct {
	sizeEditor    widget.Editor
	minesEditor   widget.Editor
	startButton   widget.Clickable
	restartButton widget.Clickable
	reloadButton  widget.Clickable
}

// GUI is the window content of the graphical client: round controls, a
// status line and the board.
type GUI struct {
	client *Client
	theme  *material.Theme
	board  *BoardView
	menu   Menu
}

func NewGUI(client *Client) *GUI {
	th := material.NewTheme()
	gui := &GUI{client: client, theme: th, board: NewBoardView(client, th)}
	defaults := client.Defaults()
	gui.menu.sizeEditor.SingleLine = true
	gui.menu.sizeEditor.SetText(strconv.Itoa(defaults.Size))
	gui.menu.minesEditor.SingleLine = true
	gui.menu.minesEditor.SetText(strconv.Itoa(defaults.Mines))
	return gui
}

func (gui *GUI) Layout(gtx layout.Context) layout.Dimensions {
	gui.handleMenuButtons(gtx)
	return layout.Flex{
		Axis:    layout.Vertical,
		Spacing: layout.SpaceEnd,
	}.Layout(gtx,
		layout.Rigid(gui.drawControls),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Spacer{Height: unit.Dp(8)}.Layout(gtx)
		}),
		layout.Rigid(gui.drawStatus),
		layout.Rigid(gui.board.Layout),
	)
}

func (gui *GUI) handleMenuButtons(gtx layout.Context) {
	if gui.menu.startButton.Clicked(gtx) {
		gui.handleStartButton()
	}
	if gui.menu.restartButton.Clicked(gtx) {
		params := gui.client.Board().Params()
		if params.Size == 0 {
			params = gui.client.Defaults()
		}
		gui.execute(Command{Kind: NewRoundCmd, Params: params})
	}
	if gui.menu.reloadButton.Clicked(gtx) {
		gui.execute(Command{Kind: ReloadCmd})
	}
}

func (gui *GUI) handleStartButton() {
	size, errs := strconv.Atoi(gui.menu.sizeEditor.Text())
	nMines, errm := strconv.Atoi(gui.menu.minesEditor.Text())
	if errs != nil || errm != nil {
		gui.client.updateStatus(func(status *Status) { status.Message = "Size and mines must be numbers" })
		return
	}
	gui.execute(Command{Kind: NewRoundCmd, Params: mines.Params{Size: size, Mines: nMines}})
}

func (gui *GUI) execute(cmd Command) {
	if err := gui.client.Execute(cmd); err != nil {
		gui.client.updateStatus(func(status *Status) { status.Message = err.Error() })
	}
}

func (gui *GUI) drawControls(gtx layout.Context) layout.Dimensions {
	editor := func(ed *widget.Editor, hint string) layout.FlexChild {
		return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			width := gtx.Dp(unit.Dp(80))
			gtx.Constraints.Min.X = width
			gtx.Constraints.Max.X = width
			return material.Editor(gui.theme, ed, hint).Layout(gtx)
		})
	}
	button := func(b *widget.Clickable, text string) layout.FlexChild {
		return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.UniformInset(unit.Dp(4)).Layout(gtx, material.Button(gui.theme, b, text).Layout)
		})
	}
	return layout.Flex{
		Axis:      layout.Horizontal,
		Alignment: layout.Middle,
	}.Layout(gtx,
		editor(&gui.menu.sizeEditor, "Size"),
		editor(&gui.menu.minesEditor, "Mines"),
		button(&gui.menu.startButton, "Start"),
		button(&gui.menu.restartButton, "Restart"),
		button(&gui.menu.reloadButton, "Reload"),
	)
}

// StatusText is the line shown above the board.
func StatusText(status Status, state mines.State) string {
	switch status.End {
	case protocol.Win:
		return "Game won"
	case protocol.Loss:
		return "Game lost"
	case protocol.Aborted:
		return "Aborted"
	}
	if status.Message != "" {
		return status.Message
	}
	return state.String()
}

func (gui *GUI) drawStatus(gtx layout.Context) layout.Dimensions {
	txt := StatusText(gui.client.Status(), gui.client.Board().State())
	return layout.UniformInset(unit.Dp(4)).Layout(gtx, material.Label(gui.theme, unit.Sp(18), txt).Layout)
}
