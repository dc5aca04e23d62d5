package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	maxReconnectAttempts = 100
	reconnectDelay       = 2 * time.Second
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrClosed       = errors.New("connection controller closed")
)

type MessageHandler func([]byte) error

// ConnectionController owns one client connection: a writer goroutine
// draining the outgoing queue and a read loop dispatching to handlers.
type ConnectionController struct {
	server           net.Conn
	messageHandlers  map[MessageType]MessageHandler
	messageChannel   chan []byte
	mu               sync.Mutex
	connected        bool
	closed           bool
	host             string
	port             uint16
	AttemptReconnect bool
	log              logrus.FieldLogger
}

func CreateConnectionController(log logrus.FieldLogger) *ConnectionController {
	if log == nil {
		log = logrus.StandardLogger()
	}
	messageHandlers := make(map[MessageType]MessageHandler)
	channel := make(chan []byte, 64)
	controller := &ConnectionController{messageHandlers: messageHandlers, messageChannel: channel, log: log}
	controller.StartWriter()
	return controller
}

func (controller *ConnectionController) Connected() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.connected
}

func (controller *ConnectionController) conn() net.Conn {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.server
}

func (controller *ConnectionController) GetServerAddress() string {
	conn := controller.conn()
	if !controller.Connected() || conn == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}

func (controller *ConnectionController) StartWriter() {
	go func() {
		for message := range controller.messageChannel {
			conn := controller.conn()
			if !controller.Connected() || conn == nil {
				controller.log.Warn("Attempted to write to not connected server")
				continue
			}
			if _, err := conn.Write(message); err != nil {
				controller.log.WithError(err).Error("Error writing to server")
			}
		}
	}()
}

func (controller *ConnectionController) isClosed() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.closed
}

func (controller *ConnectionController) TryReconnect() bool {
	for attempts := 0; attempts < maxReconnectAttempts; attempts++ {
		if controller.isClosed() {
			return false
		}
		controller.log.WithFields(logrus.Fields{
			"attempt": attempts + 1,
			"max":     maxReconnectAttempts,
		}).Info("Attempting to reconnect")
		time.Sleep(reconnectDelay)
		if err := controller.Connect(controller.host, controller.port); err == nil {
			controller.log.Info("Reconnected successfully")
			return true
		}
	}
	controller.log.Error("Failed to reconnect after max attempts")
	return false
}

func (controller *ConnectionController) SendMessage(message []byte) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.closed {
		return ErrClosed
	}
	select {
	case controller.messageChannel <- message:
	default:
		return fmt.Errorf("Failed to write to message channel")
	}
	return nil
}

func (controller *ConnectionController) SetConnection(conn net.Conn) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.closed {
		return ErrClosed
	}
	if controller.connected {
		return fmt.Errorf("Connector is already connected")
	}
	if controller.server != nil && controller.server != conn {
		controller.server.Close()
	}
	controller.server = conn
	controller.connected = true
	return nil
}

func (controller *ConnectionController) HandleMessage(bytes []byte) error {
	msgType := MessageType(bytes[0])
	handlerFunc, exists := controller.messageHandlers[msgType]
	if !exists {
		return fmt.Errorf("No handler registered for message type: %d", msgType)
	}
	return handlerFunc(bytes)
}

func (controller *ConnectionController) Connect(host string, port uint16) error {
	if controller.Connected() {
		return fmt.Errorf("Connector already connected")
	}
	controller.host = host
	controller.port = port
	conn, err := net.Dial("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return err
	}
	return controller.SetConnection(conn)
}

func (controller *ConnectionController) RegisterHandler(msgType MessageType, handlerFunc MessageHandler) {
	controller.messageHandlers[msgType] = handlerFunc
}

// Close drops the connection and stops the writer. The controller cannot be
// reused afterwards.
func (controller *ConnectionController) Close() error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.closed {
		return nil
	}
	controller.closed = true
	close(controller.messageChannel)
	controller.connected = false
	controller.AttemptReconnect = false
	if controller.server == nil {
		return nil
	}
	return controller.server.Close()
}

// ReadServerResponse dispatches incoming messages until the connection is
// lost and, if enabled, cannot be re-established.
func (controller *ConnectionController) ReadServerResponse() error {
	for {
		conn := controller.conn()
		if conn == nil {
			return ErrNotConnected
		}
		reader := bufio.NewReader(conn)
		for {
			message, err := ReadMessage(reader)
			if err != nil {
				controller.mu.Lock()
				controller.connected = false
				reconnect := controller.AttemptReconnect && !controller.closed
				controller.mu.Unlock()
				conn.Close()
				if reconnect && controller.TryReconnect() {
					break
				}
				return fmt.Errorf("Lost connection to server: %w", err)
			}
			if err := controller.HandleMessage(message); err != nil {
				controller.log.WithError(err).Warn("Failed to handle message")
			}
		}
	}
}
