/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/testbed"
)

func main() {
	tb := testbed.NewTestGame()

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("booting engine: %v", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogError("initializing engine: %v", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the render loop owns the GPU, so a signal only asks it to stop
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutting down: %v", err)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
