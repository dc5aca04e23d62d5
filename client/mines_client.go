package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/mines"
	"github.com/tomasstrnad1997/minesweep/protocol"
)

var ErrQuit = errors.New("quit")

type CommandKind int

const (
	MoveCmd CommandKind = iota
	NewRoundCmd
	ReloadCmd
	HelpCmd
	QuitCmd
)

type Command struct {
	Kind   CommandKind
	Coord  mines.Coord
	Params mines.Params
}

const helpText = `Commands:
  x y          reveal the cell at column x, row y
  new [N M]    start a new N x N round with M mines
  reload       ask the server for the whole board
  help         show this text
  quit         leave
`

// ParseCommand reads one line of user input. "new" without arguments uses
// defaults.
func ParseCommand(text string, defaults mines.Params) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("Incorrect input")
	}
	switch strings.ToLower(fields[0]) {
	case "new", "n":
		switch len(fields) {
		case 1:
			return Command{Kind: NewRoundCmd, Params: defaults}, nil
		case 3:
			var params mines.Params
			if _, err := fmt.Sscanf(fields[1]+" "+fields[2], "%d %d", &params.Size, &params.Mines); err != nil {
				return Command{}, fmt.Errorf("Incorrect round parameters: %w", err)
			}
			return Command{Kind: NewRoundCmd, Params: params}, nil
		default:
			return Command{}, fmt.Errorf("Usage: new [size mines]")
		}
	case "reload", "r":
		return Command{Kind: ReloadCmd}, nil
	case "help", "h", "?":
		return Command{Kind: HelpCmd}, nil
	case "quit", "q", "exit":
		return Command{Kind: QuitCmd}, nil
	}
	var c mines.Coord
	n, _ := fmt.Sscanf(text, "%d %d", &c.X, &c.Y)
	if n < 2 || len(fields) != 2 {
		return Command{}, fmt.Errorf("Incorrect input")
	}
	return Command{Kind: MoveCmd, Coord: c}, nil
}

// Status is what the client last heard about the round besides the board.
type Status struct {
	// End is zero until the round ends.
	End     protocol.GameEndType
	Message string
}

type Client struct {
	controller  *protocol.ConnectionController
	board       *Board
	out         io.Writer
	outMutex    sync.Mutex
	status      Status
	onChange    func()
	statusMutex sync.Mutex
	defaults    mines.Params
	log         logrus.FieldLogger
}

// New builds a client printing to out. A nil out keeps the client silent,
// for callers that draw Board and Status themselves.
func New(controller *protocol.ConnectionController, out io.Writer, defaults mines.Params, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := &Client{
		controller: controller,
		board:      NewBoard(),
		out:        out,
		defaults:   defaults,
		log:        log,
	}
	client.RegisterHandlers()
	return client
}

func (client *Client) Board() *Board {
	return client.board
}

func (client *Client) Defaults() mines.Params {
	return client.defaults
}

func (client *Client) Status() Status {
	client.statusMutex.Lock()
	defer client.statusMutex.Unlock()
	return client.status
}

// SetOnChange registers fn to run after every handled server message.
func (client *Client) SetOnChange(fn func()) {
	client.statusMutex.Lock()
	defer client.statusMutex.Unlock()
	client.onChange = fn
}

func (client *Client) updateStatus(update func(*Status)) {
	client.statusMutex.Lock()
	update(&client.status)
	client.statusMutex.Unlock()
}

func (client *Client) changed() {
	client.statusMutex.Lock()
	fn := client.onChange
	client.statusMutex.Unlock()
	if fn != nil {
		fn()
	}
}

func (client *Client) printf(format string, args ...any) {
	if client.out == nil {
		return
	}
	client.outMutex.Lock()
	defer client.outMutex.Unlock()
	fmt.Fprintf(client.out, format, args...)
}

func (client *Client) render() {
	if client.out == nil {
		return
	}
	client.outMutex.Lock()
	defer client.outMutex.Unlock()
	if err := client.board.Fprint(client.out); err != nil {
		client.log.WithError(err).Warn("Failed to render board")
	}
}

func (client *Client) RegisterHandlers() {
	client.controller.RegisterHandler(protocol.StartRound, func(bytes []byte) error {
		params, err := protocol.DecodeStartRound(bytes)
		if err != nil {
			return err
		}
		client.board.Reset(*params)
		client.updateStatus(func(status *Status) { *status = Status{} })
		client.printf("New round: %dx%d with %d mines\n", params.Size, params.Size, params.Mines)
		client.render()
		client.changed()
		return nil
	})
	client.controller.RegisterHandler(protocol.CellUpdate, func(bytes []byte) error {
		updates, err := protocol.DecodeCellUpdates(bytes)
		if err != nil {
			return err
		}
		err = client.board.Apply(updates)
		client.render()
		client.changed()
		return err
	})
	client.controller.RegisterHandler(protocol.RoundState, func(bytes []byte) error {
		state, err := protocol.DecodeRoundState(bytes)
		if err != nil {
			return err
		}
		client.board.SetState(state)
		client.log.WithField("state", state.String()).Debug("Round state changed")
		client.changed()
		return nil
	})
	client.controller.RegisterHandler(protocol.GameEnd, func(bytes []byte) error {
		endType, err := protocol.DecodeGameEnd(bytes)
		if err != nil {
			return err
		}
		client.updateStatus(func(status *Status) { status.End = endType })
		defer client.changed()
		switch endType {
		case protocol.Win:
			client.printf("You won! Type \"new\" to play again.\n")
		case protocol.Loss:
			client.printf("Boom! You lost. Type \"new\" to play again.\n")
		case protocol.Aborted:
			client.printf("Round aborted.\n")
		}
		return nil
	})
	client.controller.RegisterHandler(protocol.TextMessage, func(bytes []byte) error {
		msg, err := protocol.DecodeTextMessage(bytes)
		if err != nil {
			return err
		}
		client.updateStatus(func(status *Status) { status.Message = msg })
		client.printf("%s\n", msg)
		client.changed()
		return nil
	})
	client.controller.RegisterHandler(protocol.ErrorMessage, func(bytes []byte) error {
		remote, err := protocol.DecodeError(bytes)
		if err != nil {
			return err
		}
		client.updateStatus(func(status *Status) { status.Message = "Error: " + remote.Message })
		client.printf("Error: %s\n", remote.Message)
		client.changed()
		return nil
	})
}

func (client *Client) send(encoded []byte, err error) error {
	if err != nil {
		return err
	}
	return client.controller.SendMessage(encoded)
}

// Execute sends the request for cmd. QuitCmd returns ErrQuit.
func (client *Client) Execute(cmd Command) error {
	switch cmd.Kind {
	case MoveCmd:
		return client.send(protocol.EncodeMove(cmd.Coord))
	case NewRoundCmd:
		if err := cmd.Params.Validate(); err != nil {
			return err
		}
		return client.send(protocol.EncodeStartRound(cmd.Params))
	case ReloadCmd:
		return client.send(protocol.EncodeRequestReload())
	case HelpCmd:
		client.printf("%s", helpText)
		return nil
	case QuitCmd:
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %d", cmd.Kind)
	}
}

// Run executes commands read line by line from in until it is exhausted or
// the user quits.
func (client *Client) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := ParseCommand(line, client.defaults)
		if err != nil {
			client.printf("%s\n", err)
			continue
		}
		if err := client.Execute(cmd); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			client.printf("%s\n", err)
		}
	}
	return scanner.Err()
}
