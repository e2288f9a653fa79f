// SPDX-License-Identifier: EPL-2.0

// Package run blocks the command line tool until it is told to quit.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// SigChanFunc makes the channel signals are delivered on.
var SigChanFunc = defaultSigChanFunc

func defaultSigChanFunc() chan os.Signal {
	return make(chan os.Signal, 1)
}

// QuitSignals end the program.
var QuitSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// UntilSignal blocks until one of signals arrives and returns it.
func UntilSignal(signals ...os.Signal) os.Signal {
	ch := SigChanFunc()
	signal.Notify(ch, signals...)
	defer signal.Stop(ch)
	return <-ch
}

// UntilQuit blocks until a quit signal arrives.
func UntilQuit() os.Signal {
	return UntilSignal(QuitSignals...)
}

// Context returns a context cancelled by the first quit signal or by the
// returned cancel function.
func Context(parent context.Context, log logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := SigChanFunc()
	signal.Notify(ch, QuitSignals...)

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			log.WithField("signal", sig).Info("quit signal received")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Recover logs a panic instead of crashing. Use it deferred.
func Recover(log logrus.FieldLogger) {
	if r := recover(); r != nil {
		log.Errorf("panic recovery: %v", r)
	}
}
