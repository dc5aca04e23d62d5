package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/mines"
	"github.com/tomasstrnad1997/minesweep/protocol"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	sessionQueueLength  = 16
)

var ErrBoardTooLarge = errors.New("board exceeds server size limit")

type Options struct {
	// Params of the round every session starts with.
	Params      mines.Params
	MaxSize     int
	AutoRestart bool
	// WriteTimeout bounds each write to a client; a session whose client
	// stops reading is dropped. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	// AllowedOrigins lists the Origin values accepted on /ws. Empty keeps
	// the same-origin check; "*" accepts any origin.
	AllowedOrigins []string
	// NewPlacer builds the placer for one session. Nil uses a random placer.
	NewPlacer func() mines.Placer
	Log       logrus.FieldLogger
}

func (opts *Options) placer() mines.Placer {
	if opts.NewPlacer != nil {
		return opts.NewPlacer()
	}
	return &mines.RandomPlacer{}
}

func (opts *Options) checkParams(params mines.Params) error {
	if opts.MaxSize > 0 && params.Size > opts.MaxSize {
		return fmt.Errorf("%w: requested %d, limit %d", ErrBoardTooLarge, params.Size, opts.MaxSize)
	}
	return nil
}

func (opts *Options) writeTimeout() time.Duration {
	if opts.WriteTimeout > 0 {
		return opts.WriteTimeout
	}
	return DefaultWriteTimeout
}

// Session is one connected client with its own game. Its messages are
// handled in order by the session's own command loop.
type Session struct {
	client       net.Conn
	id           int
	connected    bool
	game         *mines.Game
	commands     chan []byte
	writeMutex   sync.Mutex
	writeTimeout time.Duration
	log          logrus.FieldLogger
}

type MessageHandler func(data []byte, session *Session) error

type Server struct {
	listener    net.Listener
	opts        Options
	log         logrus.FieldLogger
	handlers    map[protocol.MessageType]MessageHandler
	Port        uint16
	sessions    map[int]*Session
	sessionsMux sync.Mutex
	closed      chan struct{}
}

func (server *Server) Addr() net.Addr {
	return server.listener.Addr()
}

func (server *Server) GetNumberOfSessions() int {
	server.sessionsMux.Lock()
	defer server.sessionsMux.Unlock()
	return len(server.sessions)
}

func (session *Session) send(data []byte) {
	session.writeMutex.Lock()
	defer session.writeMutex.Unlock()
	if !session.connected {
		return
	}
	session.client.SetWriteDeadline(time.Now().Add(session.writeTimeout))
	if _, err := session.client.Write(data); err != nil {
		session.log.WithError(err).Warn("Failed to write to session, dropping it")
		session.connected = false
		session.client.Close()
	}
}

func (session *Session) sendEncoded(data []byte, err error) error {
	if err != nil {
		return err
	}
	session.send(data)
	return nil
}

func (session *Session) sendTextMessage(msg string) error {
	return session.sendEncoded(protocol.EncodeTextMessage(msg))
}

func (session *Session) sendError(err error) {
	code := protocol.ErrorCodeFor(err)
	if errors.Is(err, ErrBoardTooLarge) {
		code = protocol.ErrCodeConfiguration
	}
	encoded, encErr := protocol.EncodeError(code, err.Error())
	if encErr != nil {
		session.log.WithError(encErr).Error("Failed to encode error message")
		return
	}
	session.send(encoded)
}

func (session *Session) disconnect() {
	session.writeMutex.Lock()
	defer session.writeMutex.Unlock()
	if session.connected {
		session.connected = false
		session.client.Close()
	}
}

func (session *Session) sendRoundStart() error {
	round := session.game.Round()
	if round == nil {
		return mines.ErrNoRound
	}
	if err := session.sendEncoded(protocol.EncodeStartRound(round.Params())); err != nil {
		return err
	}
	return session.sendEncoded(protocol.EncodeRoundState(round.State()))
}

// sendInitialMessages replays the whole visible board to the session.
func (session *Session) sendInitialMessages() error {
	round := session.game.Round()
	if round == nil {
		return mines.ErrNoRound
	}
	if err := session.sendEncoded(protocol.EncodeStartRound(round.Params())); err != nil {
		return err
	}
	if updates := session.game.GetRevealedCellUpdates(); len(updates) > 0 {
		if err := session.sendEncoded(protocol.EncodeCellUpdates(updates)); err != nil {
			return err
		}
	}
	return session.sendEncoded(protocol.EncodeRoundState(round.State()))
}

func (server *Server) startRound(session *Session, params mines.Params) error {
	if err := server.opts.checkParams(params); err != nil {
		return err
	}
	running := session.game.State() == mines.InProgress
	if err := session.game.NewRound(params); err != nil {
		return err
	}
	if running {
		if err := session.sendEncoded(protocol.EncodeGameEnd(protocol.Aborted)); err != nil {
			return err
		}
	}
	session.log.WithFields(logrus.Fields{
		"size":  params.Size,
		"mines": params.Mines,
	}).Info("Session started a new round")
	return session.sendRoundStart()
}

func (server *Server) handleRequest(session *Session) {
	defer server.removeSession(session)
	reader := bufio.NewReader(session.client)
	session.log.WithField("remote", session.client.RemoteAddr().String()).Info("Session connected")
	if err := session.game.NewRound(server.opts.Params); err != nil {
		session.log.WithError(err).Error("Failed to start initial round")
		session.sendError(err)
		return
	}
	if err := session.sendInitialMessages(); err != nil {
		session.log.WithError(err).Error("Failed to send initial messages")
		return
	}
	go server.manageCommands(session)
	defer close(session.commands)
	for {
		message, err := protocol.ReadMessage(reader)
		if err != nil {
			if errors.Is(err, protocol.ErrPayloadTooLarge) {
				session.sendError(err)
			}
			session.log.WithError(err).Info("Session disconnected")
			return
		}
		select {
		case session.commands <- message:
		case <-server.closed:
			return
		}
	}
}

func (server *Server) removeSession(session *Session) {
	session.disconnect()
	server.sessionsMux.Lock()
	delete(server.sessions, session.id)
	server.sessionsMux.Unlock()
}

func (server *Server) HandleMessage(data []byte, session *Session) error {
	if len(data) == 0 {
		return fmt.Errorf("Cannot handle empty message")
	}
	msgType := protocol.MessageType(data[0])
	handler, exists := server.handlers[msgType]
	if !exists {
		return fmt.Errorf("%w: no handler registered for message type %d", protocol.ErrMalformed, msgType)
	}
	return handler(data, session)
}

func (server *Server) registerHandler(msgType protocol.MessageType, handler MessageHandler) {
	server.handlers[msgType] = handler
}

func (server *Server) RegisterHandlers() {
	server.registerHandler(protocol.StartRound, func(bytes []byte, session *Session) error {
		params, err := protocol.DecodeStartRound(bytes)
		if err != nil {
			return err
		}
		return server.startRound(session, *params)
	})
	server.registerHandler(protocol.MoveCommand, func(bytes []byte, session *Session) error {
		move, err := protocol.DecodeMove(bytes)
		if err != nil {
			return err
		}
		if server.opts.AutoRestart && session.game.State().Terminal() {
			if err := server.startRound(session, session.game.Round().Params()); err != nil {
				return err
			}
		}
		before := session.game.State()
		moveResult, err := session.game.Move(*move)
		if err != nil {
			return err
		}
		if len(moveResult.Changed) > 0 {
			cells, err := session.game.CreateCellUpdates(moveResult.Changed)
			if err != nil {
				return err
			}
			if err := session.sendEncoded(protocol.EncodeCellUpdates(cells)); err != nil {
				return err
			}
		}
		if moveResult.State != before {
			if err := session.sendEncoded(protocol.EncodeRoundState(moveResult.State)); err != nil {
				return err
			}
		}
		switch moveResult.Result {
		case mines.MineBlown:
			session.log.WithField("move", move.String()).Info("Session lost the round")
			return session.sendEncoded(protocol.EncodeGameEnd(protocol.Loss))
		case mines.GameWon:
			session.log.WithField("move", move.String()).Info("Session won the round")
			return session.sendEncoded(protocol.EncodeGameEnd(protocol.Win))
		}
		return nil
	})
	server.registerHandler(protocol.RequestReload, func(bytes []byte, session *Session) error {
		if err := protocol.DecodeRequestReload(bytes); err != nil {
			return err
		}
		return session.sendInitialMessages()
	})
	server.registerHandler(protocol.TextMessage, func(bytes []byte, session *Session) error {
		text, err := protocol.DecodeTextMessage(bytes)
		if err != nil {
			return err
		}
		session.log.WithField("text", text).Debug("Received text message")
		return session.sendTextMessage(fmt.Sprintf("Round is %s", session.game.State()))
	})
}

// manageCommands runs one session's messages until its reader stops.
func (server *Server) manageCommands(session *Session) {
	for message := range session.commands {
		if err := server.HandleMessage(message, session); err != nil {
			session.log.WithError(err).Warn("Failed to handle message")
			session.sendError(err)
		}
	}
}

func createServer(addr string, opts Options) (*Server, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if err := opts.checkParams(opts.Params); err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("Failed to start server: %w", err)
	}
	serverPort := listener.Addr().(*net.TCPAddr).Port
	server := &Server{
		listener: listener,
		opts:     opts,
		log:      opts.Log,
		handlers: make(map[protocol.MessageType]MessageHandler),
		Port:     uint16(serverPort),
		sessions: make(map[int]*Session),
		closed:   make(chan struct{}),
	}
	return server, nil
}

func (server *Server) serverLoop() {
	defer server.listener.Close()
	id := 1
	for {
		conn, err := server.listener.Accept()
		if err != nil {
			select {
			case <-server.closed:
			default:
				server.log.WithError(err).Error("Failed to accept connection")
			}
			return
		}
		log := server.log.WithField("session", id)
		session := &Session{
			id:           id,
			client:       conn,
			connected:    true,
			game:         mines.NewGame(mines.WithPlacer(server.opts.placer()), mines.WithLogger(log)),
			commands:     make(chan []byte, sessionQueueLength),
			writeTimeout: server.opts.writeTimeout(),
			log:          log,
		}
		server.sessionsMux.Lock()
		server.sessions[session.id] = session
		server.sessionsMux.Unlock()
		go server.handleRequest(session)
		id++
	}
}

// Close stops accepting connections and drops every session.
func (server *Server) Close() error {
	select {
	case <-server.closed:
		return nil
	default:
	}
	close(server.closed)
	err := server.listener.Close()
	server.sessionsMux.Lock()
	sessions := make([]*Session, 0, len(server.sessions))
	for _, session := range server.sessions {
		sessions = append(sessions, session)
	}
	server.sessionsMux.Unlock()
	for _, session := range sessions {
		session.disconnect()
	}
	return err
}

func SpawnServer(addr string, opts Options) (*Server, error) {
	server, err := createServer(addr, opts)
	if err != nil {
		return nil, err
	}
	server.RegisterHandlers()
	go server.serverLoop()
	server.log.WithField("addr", server.Addr().String()).Info("Mines server listening")
	return server, nil
}
