package server_test

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/mines"
	"github.com/tomasstrnad1997/minesweep/protocol"
	"github.com/tomasstrnad1997/minesweep/server"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testOptions(autoRestart bool) server.Options {
	return server.Options{
		Params:      mines.Params{Size: 3, Mines: 1},
		MaxSize:     10,
		AutoRestart: autoRestart,
		NewPlacer:   func() mines.Placer { return mines.FixedPlacer{{X: 2, Y: 2}} },
		Log:         quietLogger(),
	}
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, srv *server.Server) *testClient {
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(data []byte, err error) {
	c.t.Helper()
	if err != nil {
		c.t.Fatalf("Failed to encode message: %v", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("Failed to write message: %v", err)
	}
}

func (c *testClient) expect(msgType protocol.MessageType) []byte {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	message, err := protocol.ReadMessage(c.reader)
	if err != nil {
		c.t.Fatalf("Failed to read response: %v", err)
	}
	if protocol.MessageType(message[0]) != msgType {
		c.t.Fatalf("Got message type %d, want %d", message[0], msgType)
	}
	return message
}

func (c *testClient) expectStart(want mines.Params) {
	c.t.Helper()
	params, err := protocol.DecodeStartRound(c.expect(protocol.StartRound))
	if err != nil {
		c.t.Fatalf("Failed to decode start round: %v", err)
	}
	if *params != want {
		c.t.Fatalf("StartRound params %+v, want %+v", *params, want)
	}
}

func (c *testClient) expectState(want mines.State) {
	c.t.Helper()
	state, err := protocol.DecodeRoundState(c.expect(protocol.RoundState))
	if err != nil {
		c.t.Fatalf("Failed to decode round state: %v", err)
	}
	if state != want {
		c.t.Fatalf("RoundState %v, want %v", state, want)
	}
}

func (c *testClient) expectEnd(want protocol.GameEndType) {
	c.t.Helper()
	end, err := protocol.DecodeGameEnd(c.expect(protocol.GameEnd))
	if err != nil {
		c.t.Fatalf("Failed to decode game end: %v", err)
	}
	if end != want {
		c.t.Fatalf("GameEnd %d, want %d", end, want)
	}
}

func (c *testClient) expectError(want protocol.ErrorCode) {
	c.t.Helper()
	remote, err := protocol.DecodeError(c.expect(protocol.ErrorMessage))
	if err != nil {
		c.t.Fatalf("Failed to decode error: %v", err)
	}
	if remote.Code != want {
		c.t.Fatalf("ErrorMessage code %d (%s), want %d", remote.Code, remote.Message, want)
	}
}

func (c *testClient) expectCells() map[mines.Coord]mines.Cell {
	c.t.Helper()
	updates, err := protocol.DecodeCellUpdates(c.expect(protocol.CellUpdate))
	if err != nil {
		c.t.Fatalf("Failed to decode cell updates: %v", err)
	}
	cells := make(map[mines.Coord]mines.Cell)
	for _, u := range updates {
		cells[mines.Coord{X: u.X, Y: u.Y}] = u.Cell
	}
	return cells
}

func spawn(t *testing.T, opts server.Options) *server.Server {
	srv, err := server.SpawnServer("127.0.0.1:0", opts)
	if err != nil {
		t.Fatalf("Failed to spawn server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestSessionRound(t *testing.T) {
	srv := spawn(t, testOptions(false))
	client := dial(t, srv)
	params := mines.Params{Size: 3, Mines: 1}
	client.expectStart(params)
	client.expectState(mines.AwaitingFirstMove)

	client.send(protocol.EncodeMove(mines.Coord{X: 1, Y: 1}))
	cells := client.expectCells()
	if len(cells) != 1 || cells[mines.Coord{X: 1, Y: 1}] != mines.CountCell(1) {
		t.Fatalf("first move updates = %v", cells)
	}
	client.expectState(mines.InProgress)

	client.send(protocol.EncodeMove(mines.Coord{X: 2, Y: 2}))
	cells = client.expectCells()
	if cells[mines.Coord{X: 2, Y: 2}] != mines.DetonatedCell() {
		t.Fatalf("mine shows %v, want detonated", cells[mines.Coord{X: 2, Y: 2}])
	}
	if cells[mines.Coord{X: 0, Y: 0}] != mines.CountCell(0) {
		t.Fatalf("loss did not reveal (0, 0): %v", cells)
	}
	client.expectState(mines.Lost)
	client.expectEnd(protocol.Loss)

	client.send(protocol.EncodeMove(mines.Coord{X: 5, Y: 5}))
	client.expectError(protocol.ErrCodeInvalidCoordinate)

	client.send(protocol.EncodeRequestReload())
	client.expectStart(params)
	if cells := client.expectCells(); len(cells) != 9 {
		t.Fatalf("reload sent %d cells, want 9", len(cells))
	}
	client.expectState(mines.Lost)

	client.send(protocol.EncodeStartRound(params))
	client.expectStart(params)
	client.expectState(mines.AwaitingFirstMove)
}

func TestSessionRejectsBadRequests(t *testing.T) {
	srv := spawn(t, testOptions(false))
	client := dial(t, srv)
	client.expectStart(mines.Params{Size: 3, Mines: 1})
	client.expectState(mines.AwaitingFirstMove)

	client.send(protocol.EncodeStartRound(mines.Params{Size: 5, Mines: 25}))
	client.expectError(protocol.ErrCodeConfiguration)

	client.send(protocol.EncodeStartRound(mines.Params{Size: 300, Mines: 1}))
	client.expectError(protocol.ErrCodeConfiguration)

	client.send([]byte{0x03, 0, 0, 0, 0, 0}, nil)
	client.expectError(protocol.ErrCodeMalformed)

	client.send([]byte{byte(protocol.MoveCommand), 0, 0, 0, 0, 1, 7}, nil)
	client.expectError(protocol.ErrCodeMalformed)

	// The session survives errors and its round is untouched.
	client.send(protocol.EncodeMove(mines.Coord{X: 1, Y: 1}))
	if cells := client.expectCells(); len(cells) != 1 {
		t.Fatalf("move after errors revealed %v", cells)
	}
	client.expectState(mines.InProgress)
}

func TestSessionNewRoundAbortsRunningRound(t *testing.T) {
	srv := spawn(t, testOptions(false))
	client := dial(t, srv)
	client.expectStart(mines.Params{Size: 3, Mines: 1})
	client.expectState(mines.AwaitingFirstMove)
	client.send(protocol.EncodeMove(mines.Coord{X: 1, Y: 1}))
	client.expectCells()
	client.expectState(mines.InProgress)

	next := mines.Params{Size: 4, Mines: 1}
	client.send(protocol.EncodeStartRound(next))
	client.expectEnd(protocol.Aborted)
	client.expectStart(next)
	client.expectState(mines.AwaitingFirstMove)

	// A round nobody has moved in yet is replaced without an abort.
	last := mines.Params{Size: 5, Mines: 2}
	client.send(protocol.EncodeStartRound(last))
	client.expectStart(last)
	client.expectState(mines.AwaitingFirstMove)
}

func TestSessionAutoRestart(t *testing.T) {
	srv := spawn(t, testOptions(true))
	client := dial(t, srv)
	client.expectStart(mines.Params{Size: 3, Mines: 1})
	client.expectState(mines.AwaitingFirstMove)
	client.send(protocol.EncodeMove(mines.Coord{X: 1, Y: 1}))
	client.expectCells()
	client.expectState(mines.InProgress)
	client.send(protocol.EncodeMove(mines.Coord{X: 2, Y: 2}))
	client.expectCells()
	client.expectState(mines.Lost)
	client.expectEnd(protocol.Loss)

	client.send(protocol.EncodeMove(mines.Coord{X: 0, Y: 0}))
	client.expectStart(mines.Params{Size: 3, Mines: 1})
	client.expectState(mines.AwaitingFirstMove)
	if cells := client.expectCells(); len(cells) != 9 {
		t.Fatalf("winning first move updated %d cells, want 9", len(cells))
	}
	client.expectState(mines.Won)
	client.expectEnd(protocol.Win)
}

func TestSessionsAreIndependent(t *testing.T) {
	srv := spawn(t, testOptions(false))
	first := dial(t, srv)
	second := dial(t, srv)
	for _, c := range []*testClient{first, second} {
		c.expectStart(mines.Params{Size: 3, Mines: 1})
		c.expectState(mines.AwaitingFirstMove)
	}
	first.send(protocol.EncodeMove(mines.Coord{X: 1, Y: 1}))
	first.expectCells()
	first.expectState(mines.InProgress)

	second.send(protocol.EncodeRequestReload())
	second.expectStart(mines.Params{Size: 3, Mines: 1})
	second.expectState(mines.AwaitingFirstMove)
	if n := srv.GetNumberOfSessions(); n != 2 {
		t.Fatalf("GetNumberOfSessions() = %d, want 2", n)
	}
}

func TestSpawnServerRejectsBadDefaults(t *testing.T) {
	opts := testOptions(false)
	opts.Params = mines.Params{Size: 3, Mines: 9}
	if _, err := server.SpawnServer("127.0.0.1:0", opts); err == nil {
		t.Fatalf("SpawnServer accepted a full board")
	}
	opts.Params = mines.Params{Size: 20, Mines: 1}
	if _, err := server.SpawnServer("127.0.0.1:0", opts); err == nil {
		t.Fatalf("SpawnServer accepted a board above MaxSize")
	}
}

func intp(v int) *int { return &v }

func moveRequest(x, y int) server.WSRequest {
	return server.WSRequest{Action: "move", X: intp(x), Y: intp(y)}
}

func newRequest(size, mines int) server.WSRequest {
	return server.WSRequest{Action: "new", Size: intp(size), Mines: intp(mines)}
}

func dialWS(t *testing.T, opts server.Options) (*websocket.Conn, *httptest.Server) {
	ts := httptest.NewServer(server.NewHTTPHandler(opts))
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, ts
}

func readWS(t *testing.T, conn *websocket.Conn) server.WSResponse {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var resp server.WSResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("Failed to read websocket response: %v", err)
	}
	return resp
}

func TestWebSocketRound(t *testing.T) {
	conn, _ := dialWS(t, testOptions(false))
	resp := readWS(t, conn)
	if resp.Action != "state" || resp.State != "awaiting_first_move" || resp.Size != 3 {
		t.Fatalf("initial response = %+v", resp)
	}
	for _, row := range resp.Cells {
		for _, cell := range row {
			if cell != "hidden" {
				t.Fatalf("fresh board shows %q", cell)
			}
		}
	}

	conn.WriteJSON(moveRequest(1, 1))
	resp = readWS(t, conn)
	if resp.State != "in_progress" || resp.Result != "CellRevealed" {
		t.Fatalf("move response = %+v", resp)
	}
	if len(resp.Changed) != 1 || resp.Changed[0] != (server.WSCell{X: 1, Y: 1, Value: "1"}) {
		t.Fatalf("changed = %v", resp.Changed)
	}
	if resp.Cells[1][1] != "1" {
		t.Fatalf("cells[1][1] = %q, want 1", resp.Cells[1][1])
	}

	conn.WriteJSON(moveRequest(2, 2))
	resp = readWS(t, conn)
	if resp.State != "lost" || resp.Cells[2][2] != "detonated" || resp.Cells[0][0] != "blank" {
		t.Fatalf("losing move response = %+v", resp)
	}

	conn.WriteJSON(moveRequest(9, 9))
	if resp = readWS(t, conn); resp.Action != "error" {
		t.Fatalf("out of range move response = %+v", resp)
	}
	conn.WriteJSON(newRequest(5, 25))
	if resp = readWS(t, conn); resp.Action != "error" {
		t.Fatalf("full board response = %+v", resp)
	}
	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if resp = readWS(t, conn); resp.Action != "error" {
		t.Fatalf("invalid json response = %+v", resp)
	}

	conn.WriteJSON(newRequest(4, 2))
	resp = readWS(t, conn)
	if resp.State != "awaiting_first_move" || resp.Size != 4 || len(resp.Cells) != 4 {
		t.Fatalf("new round response = %+v", resp)
	}
	conn.WriteJSON(server.WSRequest{Action: "state"})
	if resp = readWS(t, conn); resp.Mines != 2 {
		t.Fatalf("state response = %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(server.NewHTTPHandler(testOptions(false)))
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("Failed to get healthz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestStalledSessionDoesNotBlockOthers(t *testing.T) {
	opts := testOptions(false)
	opts.MaxSize = 256
	opts.WriteTimeout = 300 * time.Millisecond
	srv := spawn(t, opts)

	stalled := dial(t, srv)
	active := dial(t, srv)
	active.expectStart(mines.Params{Size: 3, Mines: 1})
	active.expectState(mines.AwaitingFirstMove)

	// The stalled client asks for large boards and never reads a reply.
	go func() {
		var requests []byte
		start, _ := protocol.EncodeStartRound(mines.Params{Size: 256, Mines: 1})
		move, _ := protocol.EncodeMove(mines.Coord{X: 0, Y: 0})
		reload, _ := protocol.EncodeRequestReload()
		requests = append(requests, start...)
		requests = append(requests, move...)
		for range 60 {
			requests = append(requests, reload...)
		}
		stalled.conn.Write(requests)
	}()
	time.Sleep(100 * time.Millisecond)

	for range 3 {
		active.send(protocol.EncodeRequestReload())
		active.expectStart(mines.Params{Size: 3, Mines: 1})
		active.expectState(mines.AwaitingFirstMove)
	}
	active.send(protocol.EncodeMove(mines.Coord{X: 1, Y: 1}))
	active.expectCells()
	active.expectState(mines.InProgress)

	deadline := time.Now().Add(5 * time.Second)
	for srv.GetNumberOfSessions() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stalled session was not dropped, %d sessions left", srv.GetNumberOfSessions())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestWebSocketMoveNeedsCoordinates(t *testing.T) {
	conn, _ := dialWS(t, testOptions(false))
	readWS(t, conn)
	conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"move"}`))
	if resp := readWS(t, conn); resp.Action != "error" {
		t.Fatalf("move without coordinates response = %+v", resp)
	}
	conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"move","x":0}`))
	if resp := readWS(t, conn); resp.Action != "error" {
		t.Fatalf("move without y response = %+v", resp)
	}
	conn.WriteJSON(server.WSRequest{Action: "state"})
	resp := readWS(t, conn)
	if resp.State != "awaiting_first_move" || resp.Cells[0][0] != "hidden" {
		t.Fatalf("rejected moves changed the round: %+v", resp)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"new"}`))
	if resp := readWS(t, conn); resp.Size != 3 || resp.Mines != 1 {
		t.Fatalf("new without params response = %+v", resp)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	opts := testOptions(false)
	ts := httptest.NewServer(server.NewHTTPHandler(opts))
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://elsewhere.example"}}
	if conn, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		conn.Close()
		t.Fatalf("cross-origin upgrade accepted by default")
	}

	opts.AllowedOrigins = []string{"http://elsewhere.example"}
	allowed := httptest.NewServer(server.NewHTTPHandler(opts))
	defer allowed.Close()
	url = "ws" + strings.TrimPrefix(allowed.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Failed to dial from an allowed origin: %v", err)
	}
	conn.Close()
	other := http.Header{"Origin": []string{"http://evil.example"}}
	if conn, _, err := websocket.DefaultDialer.Dial(url, other); err == nil {
		conn.Close()
		t.Fatalf("origin outside the allowed list accepted")
	}
}
