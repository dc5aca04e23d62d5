package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/config"
	"github.com/tomasstrnad1997/minesweep/mines"
	"github.com/tomasstrnad1997/minesweep/server"
)

func main() {
	cfg, err := config.LoadServer(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	opts := server.Options{
		Params:         cfg.Params(),
		MaxSize:        cfg.MaxSize,
		AutoRestart:    cfg.AutoRestart,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins(),
		Log:            logrus.StandardLogger(),
	}
	if cfg.Seed != 0 {
		opts.NewPlacer = func() mines.Placer { return mines.NewRandomPlacer(cfg.Seed) }
	}
	srv, err := server.SpawnServer(cfg.Addr, opts)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
	logrus.WithFields(logrus.Fields{
		"port":         srv.Port,
		"size":         cfg.Size,
		"mines":        cfg.Mines,
		"auto_restart": cfg.AutoRestart,
	}).Info("Server started")

	if cfg.HTTPAddr != "" {
		httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server.NewHTTPHandler(opts)}
		go func() {
			logrus.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Fatal("HTTP server failed")
			}
		}()
		defer httpServer.Close()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logrus.Info("Shutting down")
	srv.Close()
}
