package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/client"
	"github.com/tomasstrnad1997/minesweep/config"
	"github.com/tomasstrnad1997/minesweep/protocol"
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := config.SetupLogging(cfg.LogLevel, "text"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	controller := protocol.CreateConnectionController(logrus.StandardLogger())
	if err := controller.Connect(cfg.Host, cfg.Port); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to server")
	}
	controller.AttemptReconnect = cfg.Reconnect
	defer controller.Close()

	var out io.Writer = os.Stdout
	if cfg.GUI {
		out = nil
	}
	c := client.New(controller, out, cfg.Params(), logrus.StandardLogger())
	go func() {
		if err := controller.ReadServerResponse(); err != nil {
			logrus.WithError(err).Error("Connection closed")
			os.Exit(1)
		}
	}()
	if cfg.GUI {
		runGUI(c)
		return
	}
	fmt.Println(`Type "help" for commands.`)
	if err := c.Run(os.Stdin); err != nil {
		logrus.WithError(err).Error("Failed to read input")
	}
}
