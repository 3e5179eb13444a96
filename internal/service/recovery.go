package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/model"
	"github.com/h3nryswan/video-transcoder/internal/registry"
	"github.com/h3nryswan/video-transcoder/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	interruptedMessage = "interrupted by service restart"
	orphanedMessage    = "input or output file record is missing"
)

// Recovery brings the job table back in line with reality after a restart
// and periodically hands queued jobs that were never dispatched to the
// dispatcher again
type Recovery struct {
	store      *store.Store
	dispatcher Dispatcher
	cron       *cron.Cron
}

func NewRecovery(s *store.Store, d Dispatcher) *Recovery {
	return &Recovery{
		store:      s,
		dispatcher: d,
	}
}

// Recover must run before any worker starts. Jobs still marked running were
// orphaned by the previous process and are failed, queued jobs are
// dispatched again.
func (r *Recovery) Recover(ctx context.Context) error {
	var (
		failed   int
		orphaned []string
	)

	err := r.store.Update(ctx, func(s *model.State) error {
		failed, orphaned = 0, orphaned[:0]

		for _, j := range s.Jobs {
			if j.Status != model.StatusRunning {
				continue
			}

			if _, err := ledger.Transition(s, j.ID, model.StatusError, ledger.Fields{Error: interruptedMessage}); err != nil {
				return err
			}
			failed++

			if out, ok := registry.Lookup(s, j.OutputID, j.Owner); ok {
				orphaned = append(orphaned, out.Path)
			}
		}

		if failed == 0 {
			return errNothingToDo
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNothingToDo) {
		return fmt.Errorf("failed to fail orphaned jobs, %w", err)
	}

	for _, p := range orphaned {
		removePartial(p)
	}

	if failed > 0 {
		jobsFinished.WithLabelValues("interrupted").Add(float64(failed))
		zap.L().Warn("Failed jobs interrupted by the last shutdown", zap.Int("count", failed))
	}

	_, err = r.Requeue(ctx)
	return err
}

// Requeue dispatches every queued job and returns how many were accepted
func (r *Recovery) Requeue(ctx context.Context) (int, error) {
	var (
		pending []Dispatch
		broken  []string
	)

	err := r.store.View(ctx, func(s *model.State) error {
		for _, j := range s.Jobs {
			if j.Status != model.StatusQueued {
				continue
			}

			in, inOK := registry.Lookup(s, j.InputID, j.Owner)
			out, outOK := registry.Lookup(s, j.OutputID, j.Owner)
			if !inOK || !outOK {
				broken = append(broken, j.ID)
				continue
			}

			pending = append(pending, Dispatch{JobID: j.ID, InputPath: in.Path, OutputPath: out.Path})
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list queued jobs, %w", err)
	}

	if len(broken) > 0 {
		if err := r.failBroken(ctx, broken); err != nil {
			return 0, err
		}
	}

	accepted := 0
	for _, d := range pending {
		if err := r.dispatcher.Enqueue(ctx, d); err != nil {
			if errors.Is(err, ErrQueueFull) {
				break
			}

			zap.L().Error("Failed to requeue job", zap.String("job_id", d.JobID), zap.Error(err))
			continue
		}
		accepted++
	}

	if len(pending) > 0 {
		zap.L().Debug("Requeued jobs", zap.Int("queued", len(pending)), zap.Int("accepted", accepted))
	}

	return accepted, nil
}

// failBroken moves queued jobs that can never run straight to error, so
// later sweeps don't see them again
func (r *Recovery) failBroken(ctx context.Context, ids []string) error {
	var failed []string

	err := r.store.Update(ctx, func(s *model.State) error {
		failed = failed[:0]

		for _, id := range ids {
			j, ok := ledger.Lookup(s, id)
			if !ok || j.Status != model.StatusQueued {
				continue
			}

			if _, err := ledger.Transition(s, id, model.StatusRunning, ledger.Fields{}); err != nil {
				return err
			}
			if _, err := ledger.Transition(s, id, model.StatusError, ledger.Fields{Error: orphanedMessage}); err != nil {
				return err
			}
			failed = append(failed, id)
		}

		if len(failed) == 0 {
			return errNothingToDo
		}
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fail jobs with missing files, %w", err)
	}

	for _, id := range failed {
		jobsFinished.WithLabelValues("orphaned").Inc()
		zap.L().Error("Failed queued job that references missing files", zap.String("job_id", id))
	}

	return nil
}

// Start schedules Requeue with a cron spec such as "@every 30s"
func (r *Recovery) Start(spec string) error {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		if _, err := r.Requeue(context.Background()); err != nil {
			zap.L().Error("Requeue sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid requeue interval %q, %w", spec, err)
	}

	r.cron = c
	c.Start()

	zap.L().Debug("Requeue sweep attached", zap.String("spec", spec))
	return nil
}

func (r *Recovery) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}
