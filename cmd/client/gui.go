package main

import (
	"os"

	"gioui.org/app"
	"gioui.org/op"
	"github.com/sirupsen/logrus"
	"github.com/tomasstrnad1997/minesweep/client"
)

func mainLoop(w *app.Window, gui *client.GUI) error {
	var ops op.Ops
	for {
		switch windowEvent := w.Event().(type) {
		case app.FrameEvent:
			gtx := app.NewContext(&ops, windowEvent)
			gui.Layout(gtx)
			windowEvent.Frame(gtx.Ops)
		case app.DestroyEvent:
			return windowEvent.Err
		}
	}
}

// runGUI opens the game window and blocks until it is closed.
func runGUI(c *client.Client) {
	go func() {
		w := new(app.Window)
		w.Option(app.Title("Minesweep"))
		c.SetOnChange(w.Invalidate)
		if err := mainLoop(w, client.NewGUI(c)); err != nil {
			logrus.WithError(err).Error("Window closed with error")
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}
