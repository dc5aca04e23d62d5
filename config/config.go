package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/mines"
)

const (
	DefaultAddr     = "0.0.0.0:42069"
	DefaultHTTPAddr = ""
	DefaultMaxSize  = 256
	DefaultHost     = "localhost"
	DefaultPort     = 42069

	DefaultWriteTimeout = 10 * time.Second
)

type Server struct {
	Addr        string
	HTTPAddr    string
	Size        int
	Mines       int
	Seed        uint64
	MaxSize     int
	AutoRestart bool
	// WriteTimeout bounds a single write to a client.
	WriteTimeout time.Duration
	// WSOrigins is a comma separated list of extra origins accepted on /ws.
	WSOrigins string
	LogLevel  string
	LogFormat string
}

type Client struct {
	Host      string
	Port      uint16
	Size      int
	Mines     int
	Reconnect bool
	GUI       bool
	LogLevel  string
}

func DefaultServer() Server {
	return Server{
		Addr:         DefaultAddr,
		HTTPAddr:     DefaultHTTPAddr,
		Size:         mines.DefaultSize,
		Mines:        mines.DefaultMines,
		MaxSize:      DefaultMaxSize,
		WriteTimeout: DefaultWriteTimeout,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

func DefaultClient() Client {
	return Client{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Size:     mines.DefaultSize,
		Mines:    mines.DefaultMines,
		LogLevel: "warn",
	}
}

// Params is the board every new session starts with.
func (s *Server) Params() mines.Params {
	return mines.Params{Size: s.Size, Mines: s.Mines}
}

// AllowedOrigins splits WSOrigins, dropping empty entries.
func (s *Server) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(s.WSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (s *Server) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("server address must not be empty")
	}
	if s.MaxSize <= 0 {
		return fmt.Errorf("max size must be positive (%d)", s.MaxSize)
	}
	if s.Size > s.MaxSize {
		return fmt.Errorf("board size %d exceeds max size %d", s.Size, s.MaxSize)
	}
	if err := s.Params().Validate(); err != nil {
		return err
	}
	if s.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive (%s)", s.WriteTimeout)
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", s.LogFormat)
	}
	return nil
}

func (c *Client) Params() mines.Params {
	return mines.Params{Size: c.Size, Mines: c.Mines}
}

func (c *Client) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// LoadServer reads flags from args, falling back to MINES_* environment
// variables and then to the defaults.
func LoadServer(args []string) (*Server, error) {
	cfg := DefaultServer()
	if err := applyServerEnv(&cfg); err != nil {
		return nil, err
	}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP/WebSocket listen address, empty disables it")
	fs.IntVar(&cfg.Size, "size", cfg.Size, "default board size")
	fs.IntVar(&cfg.Mines, "mines", cfg.Mines, "default mine count")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "placement seed, 0 for random")
	fs.IntVar(&cfg.MaxSize, "max-size", cfg.MaxSize, "largest board a client may request")
	fs.BoolVar(&cfg.AutoRestart, "auto-restart", cfg.AutoRestart, "start a new round on a move after the game ended")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "drop a client that blocks a write for this long")
	fs.StringVar(&cfg.WSOrigins, "ws-origins", cfg.WSOrigins, "comma separated origins accepted on /ws, * for any")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text or json)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadClient(args []string) (*Client, error) {
	cfg := DefaultClient()
	if err := applyClientEnv(&cfg); err != nil {
		return nil, err
	}
	var port uint
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "server host")
	fs.UintVar(&port, "port", uint(cfg.Port), "server port")
	fs.IntVar(&cfg.Size, "size", cfg.Size, "board size for new rounds")
	fs.IntVar(&cfg.Mines, "mines", cfg.Mines, "mine count for new rounds")
	fs.BoolVar(&cfg.Reconnect, "reconnect", cfg.Reconnect, "reconnect when the connection drops")
	fs.BoolVar(&cfg.GUI, "gui", cfg.GUI, "open a window instead of the terminal client")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if port == 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	cfg.Port = uint16(port)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyServerEnv(cfg *Server) error {
	cfg.Addr = envString("MINES_ADDR", cfg.Addr)
	cfg.HTTPAddr = envString("MINES_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = envString("MINES_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("MINES_LOG_FORMAT", cfg.LogFormat)
	cfg.WSOrigins = envString("MINES_WS_ORIGINS", cfg.WSOrigins)
	var err error
	if cfg.Size, err = envInt("MINES_SIZE", cfg.Size); err != nil {
		return err
	}
	if cfg.Mines, err = envInt("MINES_MINES", cfg.Mines); err != nil {
		return err
	}
	if cfg.MaxSize, err = envInt("MINES_MAX_SIZE", cfg.MaxSize); err != nil {
		return err
	}
	if cfg.AutoRestart, err = envBool("MINES_AUTO_RESTART", cfg.AutoRestart); err != nil {
		return err
	}
	if value, ok := os.LookupEnv("MINES_SEED"); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("MINES_SEED: %w", err)
		}
		cfg.Seed = seed
	}
	if value, ok := os.LookupEnv("MINES_WRITE_TIMEOUT"); ok && value != "" {
		timeout, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("MINES_WRITE_TIMEOUT: %w", err)
		}
		cfg.WriteTimeout = timeout
	}
	return nil
}

func applyClientEnv(cfg *Client) error {
	cfg.Host = envString("MINES_HOST", cfg.Host)
	cfg.LogLevel = envString("MINES_LOG_LEVEL", cfg.LogLevel)
	var err error
	if cfg.Size, err = envInt("MINES_SIZE", cfg.Size); err != nil {
		return err
	}
	if cfg.Mines, err = envInt("MINES_MINES", cfg.Mines); err != nil {
		return err
	}
	if cfg.GUI, err = envBool("MINES_GUI", cfg.GUI); err != nil {
		return err
	}
	if value, ok := os.LookupEnv("MINES_PORT"); ok {
		port, err := strconv.ParseUint(strings.TrimSpace(value), 10, 16)
		if err != nil {
			return fmt.Errorf("MINES_PORT: %w", err)
		}
		cfg.Port = uint16(port)
	}
	return nil
}

func envString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
