package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/mines"
)

var errMissingCoordinate = errors.New("move needs both x and y")

// WSRequest is a message from a browser client. "new" without size and
// mines uses the server defaults.
type WSRequest struct {
	Action string `json:"action"` // "new", "move" or "state"
	Size   *int   `json:"size,omitempty"`
	Mines  *int   `json:"mines,omitempty"`
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
}

// newUpgrader accepts same-origin requests, plus the configured origins.
func newUpgrader(allowed []string) *websocket.Upgrader {
	upgrader := &websocket.Upgrader{}
	if len(allowed) == 0 {
		return upgrader
	}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		return r.Host != "" && (origin == "http://"+r.Host || origin == "https://"+r.Host)
	}
	return upgrader
}

type WSCell struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Value string `json:"value"`
}

type WSResponse struct {
	Action string `json:"action"` // "state" or "error"
	State  string `json:"state,omitempty"`
	Size   int    `json:"size,omitempty"`
	Mines  int    `json:"mines,omitempty"`
	Result string `json:"result,omitempty"`
	// Cells is indexed [y][x].
	Cells   [][]string `json:"cells,omitempty"`
	Changed []WSCell   `json:"changed,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func NewHTTPHandler(opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	upgrader := newUpgrader(opts.AllowedOrigins)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		webSocketHandler(w, r, upgrader, &opts)
	})
	return mux
}

func webSocketHandler(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, opts *Options) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		opts.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	log := opts.Log.WithField("remote", r.RemoteAddr)
	log.Info("WebSocket client connected")

	game := mines.NewGame(mines.WithPlacer(opts.placer()), mines.WithLogger(log))
	if err := game.NewRound(opts.Params); err != nil {
		writeWS(conn, log, errorResponse(err))
		return
	}
	if !writeWS(conn, log, stateResponse(game, nil, nil)) {
		return
	}

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Info("WebSocket client disconnected")
			return
		}
		var msg WSRequest
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			log.WithError(err).Debug("Invalid WS message")
			if !writeWS(conn, log, WSResponse{Action: "error", Error: "invalid message"}) {
				return
			}
			continue
		}
		if !writeWS(conn, log, handleWSRequest(game, opts, msg)) {
			return
		}
	}
}

func handleWSRequest(game *mines.Game, opts *Options, msg WSRequest) WSResponse {
	switch msg.Action {
	case "state":
		return stateResponse(game, nil, nil)
	case "new":
		params := opts.Params
		if msg.Size != nil {
			params.Size = *msg.Size
		}
		if msg.Mines != nil {
			params.Mines = *msg.Mines
		}
		if err := opts.checkParams(params); err != nil {
			return errorResponse(err)
		}
		if err := game.NewRound(params); err != nil {
			return errorResponse(err)
		}
		return stateResponse(game, nil, nil)
	case "move":
		if msg.X == nil || msg.Y == nil {
			return errorResponse(errMissingCoordinate)
		}
		if opts.AutoRestart && game.State().Terminal() {
			if err := game.NewRound(game.Round().Params()); err != nil {
				return errorResponse(err)
			}
		}
		result, err := game.Move(mines.Coord{X: *msg.X, Y: *msg.Y})
		if err != nil {
			return errorResponse(err)
		}
		updates, err := game.CreateCellUpdates(result.Changed)
		if err != nil {
			return errorResponse(err)
		}
		return stateResponse(game, result, updates)
	default:
		return WSResponse{Action: "error", Error: "unknown action " + msg.Action}
	}
}

func errorResponse(err error) WSResponse {
	return WSResponse{Action: "error", Error: err.Error()}
}

func stateResponse(game *mines.Game, result *mines.MoveResult, updates []mines.UpdatedCell) WSResponse {
	round := game.Round()
	if round == nil {
		return errorResponse(mines.ErrNoRound)
	}
	params := round.Params()
	cells := make([][]string, params.Size)
	for y := range params.Size {
		cells[y] = make([]string, params.Size)
		for x := range params.Size {
			cells[y][x] = round.Grid().Display(mines.Coord{X: x, Y: y}).String()
		}
	}
	resp := WSResponse{
		Action: "state",
		State:  round.State().String(),
		Size:   params.Size,
		Mines:  params.Mines,
		Cells:  cells,
	}
	if result != nil {
		resp.Result = result.Result.String()
	}
	for _, update := range updates {
		resp.Changed = append(resp.Changed, WSCell{X: update.X, Y: update.Y, Value: update.Cell.String()})
	}
	return resp
}

func writeWS(conn *websocket.Conn, log logrus.FieldLogger, resp WSResponse) bool {
	data, err := json.Marshal(resp)
	if err != nil {
		log.WithError(err).Error("Error marshaling WS response")
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.WithError(err).Warn("Error writing WS message")
		return false
	}
	return true
}
