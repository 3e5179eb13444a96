// Package store keeps the canonical copy of every file and job record.
//
// A single goroutine owns the in-memory State. Every other component talks to
// it through Update and View, which are executed one at a time, so writers
// never interleave. An Update only commits once the backend has persisted the
// whole State; when either the mutation or the save fails the previous State
// is kept.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/h3nryswan/video-transcoder/internal/model"

	"go.uber.org/zap"
)

var (
	ErrPersistence = errors.New("failed to persist state")
	ErrClosed      = errors.New("store is closed")
)

// Backend loads and saves the whole State
type Backend interface {
	Load(ctx context.Context) (*model.State, error)
	Save(ctx context.Context, s *model.State) error
	Close() error
}

type command struct {
	ctx   context.Context
	fn    func(*model.State) error
	write bool
	reply chan error
}

type Store struct {
	backend Backend
	cmds    chan command
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// Open loads the persisted state and starts the goroutine that owns it
func Open(ctx context.Context, b Backend) (*Store, error) {
	state, err := b.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state, %w", err)
	}

	s := &Store{
		backend: b,
		cmds:    make(chan command),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	zap.L().Debug("Store opened",
		zap.Int("files", len(state.Files)),
		zap.Int("jobs", len(state.Jobs)))

	go s.loop(state)

	return s, nil
}

// Update runs fn against a copy of the state and persists the result. The
// change is visible to other callers only after the save succeeded. Errors
// returned by fn are passed through untouched; save errors wrap ErrPersistence.
func (s *Store) Update(ctx context.Context, fn func(*model.State) error) error {
	return s.do(ctx, fn, true)
}

// View gives fn read access to the current state. fn must not modify the
// state or keep references to it after returning.
func (s *Store) View(ctx context.Context, fn func(*model.State) error) error {
	return s.do(ctx, fn, false)
}

// Close stops the owning goroutine and closes the backend
func (s *Store) Close() error {
	var err error

	s.once.Do(func() {
		close(s.done)
		<-s.stopped
		err = s.backend.Close()
	})

	return err
}

func (s *Store) do(ctx context.Context, fn func(*model.State) error, write bool) error {
	reply := make(chan error, 1)

	select {
	case s.cmds <- command{ctx: ctx, fn: fn, write: write, reply: reply}:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted a command always runs to completion, so its real outcome
	// is reported even if ctx ends in the meantime
	return <-reply
}

func (s *Store) loop(state *model.State) {
	defer close(s.stopped)

	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.cmds:
			state = s.exec(state, cmd)
		}
	}
}

func (s *Store) exec(state *model.State, cmd command) *model.State {
	if !cmd.write {
		cmd.reply <- cmd.fn(state)
		return state
	}

	next := state.Clone()
	if err := cmd.fn(next); err != nil {
		cmd.reply <- err
		return state
	}

	if err := s.backend.Save(context.WithoutCancel(cmd.ctx), next); err != nil {
		zap.L().Error("Failed to persist state", zap.Error(err))
		cmd.reply <- fmt.Errorf("%w: %w", ErrPersistence, err)
		return state
	}

	cmd.reply <- nil
	return next
}
