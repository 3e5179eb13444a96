// Package ledger tracks transcode jobs and enforces their state machine:
//
//	queued -> running -> done
//	                  -> error
//
// Only the process supervisor and recovery move jobs forward. Any other
// transition is a programming error.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/h3nryswan/video-transcoder/internal/model"
	"github.com/h3nryswan/video-transcoder/internal/store"
)

var (
	ErrDuplicateID       = errors.New("job id already exists")
	ErrNotFound          = errors.New("job not found")
	ErrIllegalTransition = errors.New("illegal job transition")
)

var transitions = map[model.JobStatus][]model.JobStatus{
	model.StatusQueued:  {model.StatusRunning},
	model.StatusRunning: {model.StatusDone, model.StatusError},
}

type TransitionError struct {
	JobID string
	From  model.JobStatus
	To    model.JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal job transition %s -> %s for job %s", e.From, e.To, e.JobID)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Fields carries the values set by a transition. Timestamps are unix
// milliseconds; zero means "now".
type Fields struct {
	At    int64
	Error string
}

type Ledger struct {
	store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

func (l *Ledger) Create(ctx context.Context, j model.Job) (model.Job, error) {
	err := l.store.Update(ctx, func(s *model.State) error {
		return Insert(s, j)
	})
	if err != nil {
		return model.Job{}, err
	}

	return j, nil
}

// FindByID only returns jobs owned by owner
func (l *Ledger) FindByID(ctx context.Context, id, owner string) (j model.Job, ok bool, err error) {
	err = l.store.View(ctx, func(s *model.State) error {
		j, ok = Lookup(s, id)
		if ok && j.Owner != owner {
			j, ok = model.Job{}, false
		}
		return nil
	})

	return j, ok, err
}

// Get looks a job up regardless of its owner. Used by the supervisor.
func (l *Ledger) Get(ctx context.Context, id string) (j model.Job, ok bool, err error) {
	err = l.store.View(ctx, func(s *model.State) error {
		j, ok = Lookup(s, id)
		return nil
	})

	return j, ok, err
}

// ListByOwner returns the jobs of owner, newest first
func (l *Ledger) ListByOwner(ctx context.Context, owner string) ([]model.Job, error) {
	jobs := []model.Job{}

	err := l.store.View(ctx, func(s *model.State) error {
		for _, j := range s.Jobs {
			if j.Owner == owner {
				jobs = append(jobs, j)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(jobs, func(a, b model.Job) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return jobs, nil
}

// ListByStatus returns every job currently in status, in the order they were created
func (l *Ledger) ListByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	jobs := []model.Job{}

	err := l.store.View(ctx, func(s *model.State) error {
		for _, j := range s.Jobs {
			if j.Status == status {
				jobs = append(jobs, j)
			}
		}
		return nil
	})

	return jobs, err
}

func (l *Ledger) Transition(ctx context.Context, id string, next model.JobStatus, f Fields) (model.Job, error) {
	var j model.Job

	err := l.store.Update(ctx, func(s *model.State) error {
		var err error
		j, err = Transition(s, id, next, f)
		return err
	})
	if err != nil {
		return model.Job{}, err
	}

	return j, nil
}

func Insert(s *model.State, j model.Job) error {
	if _, ok := Lookup(s, j.ID); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, j.ID)
	}

	s.Jobs = append(s.Jobs, j)
	return nil
}

func Lookup(s *model.State, id string) (model.Job, bool) {
	i := index(s, id)
	if i < 0 {
		return model.Job{}, false
	}

	return s.Jobs[i], true
}

// Transition moves job id to next inside a store update
func Transition(s *model.State, id string, next model.JobStatus, f Fields) (model.Job, error) {
	i := index(s, id)
	if i < 0 {
		return model.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	j := &s.Jobs[i]
	if !slices.Contains(transitions[j.Status], next) {
		return model.Job{}, &TransitionError{JobID: id, From: j.Status, To: next}
	}

	at := f.At
	if at == 0 {
		at = model.Now()
	}

	switch next {
	case model.StatusRunning:
		j.StartedAt = &at
	case model.StatusDone:
		j.FinishedAt = &at
	case model.StatusError:
		msg := f.Error
		j.FinishedAt = &at
		j.Error = &msg
	}

	j.Status = next
	return *j, nil
}

// Claim moves a queued job to running. A job that doesn't exist or has
// already left the queue is not claimed, which is not an error.
func Claim(s *model.State, id string) (model.Job, bool) {
	j, ok := Lookup(s, id)
	if !ok || j.Status != model.StatusQueued {
		return model.Job{}, false
	}

	j, err := Transition(s, id, model.StatusRunning, Fields{})
	if err != nil {
		return model.Job{}, false
	}

	return j, true
}

func index(s *model.State, id string) int {
	return slices.IndexFunc(s.Jobs, func(j model.Job) bool {
		return j.ID == id
	})
}
