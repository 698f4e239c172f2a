// Package interrupt turns operator interrupts and process exit requests
// into a single cooperative cancellation signal.
//
// An interrupt never terminates the process by itself. The first SIGINT
// cancels the Source's context and every operation holding it is expected
// to unwind. Signal handling is released once the Source fires, so a
// second SIGINT falls back to the runtime's default behavior.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInterrupted is the cancellation cause after an operator interrupt.
	ErrInterrupted = errors.New("interrupted by operator")
	// ErrProcessExit is the cancellation cause when the process is exiting
	// before anything else requested cancellation.
	ErrProcessExit = errors.New("process exiting")
)

// Source is a single-shot, process-wide cancellation signal.
type Source struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	sigs     chan os.Signal
	fireOnce sync.Once
	stopOnce sync.Once
	done     chan struct{}
}

// New registers for interrupt and termination signals and returns a Source
// whose context is derived from parent.
func New(parent context.Context) *Source {
	s := newSource(parent)
	signal.Notify(s.sigs, os.Interrupt, syscall.SIGTERM)
	go s.watch()
	return s
}

func newSource(parent context.Context) *Source {
	ctx, cancel := context.WithCancelCause(parent)
	return &Source{
		ctx:    ctx,
		cancel: cancel,
		sigs:   make(chan os.Signal, 1),
		done:   make(chan struct{}),
	}
}

func (s *Source) watch() {
	for {
		select {
		case sig := <-s.sigs:
			if sig == os.Interrupt {
				log.Warn("Interrupt received, cancelling in-flight operations")
				s.Interrupt()
			} else {
				log.Warnf("Received %s, cancelling in-flight operations", sig)
				s.Exit()
			}
		case <-s.ctx.Done():
			s.Stop()
			return
		case <-s.done:
			return
		}
	}
}

// Context returns the read-only handle shared by every long-running operation.
func (s *Source) Context() context.Context {
	return s.ctx
}

// Interrupt fires the signal with ErrInterrupted. Only the first call has effect.
func (s *Source) Interrupt() {
	s.fire(ErrInterrupted)
}

// Exit handles a process exit notification: it is a no-op if the signal
// already fired and fires it with ErrProcessExit otherwise.
func (s *Source) Exit() {
	if s.Requested() {
		return
	}
	s.fire(ErrProcessExit)
}

func (s *Source) fire(cause error) {
	s.fireOnce.Do(func() {
		s.cancel(cause)
	})
}

// Requested reports whether the signal has fired.
func (s *Source) Requested() bool {
	return s.ctx.Err() != nil
}

// Cause returns why the signal fired, or nil if it has not.
func (s *Source) Cause() error {
	return context.Cause(s.ctx)
}

// Stop releases signal registration. The signal's state is left untouched.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		signal.Stop(s.sigs)
		close(s.done)
	})
}
