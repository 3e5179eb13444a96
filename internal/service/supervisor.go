package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/model"
	"github.com/h3nryswan/video-transcoder/internal/registry"
	"github.com/h3nryswan/video-transcoder/internal/store"

	"go.uber.org/zap"
)

const (
	stderrLimit = 64 << 10

	// how long Wait keeps reading stderr after the encoder was killed
	waitDelay = 5 * time.Second
)

// Dispatch is what the orchestrator hands to the supervisor
type Dispatch struct {
	JobID      string `json:"jobId"`
	InputPath  string `json:"inputPath"`
	OutputPath string `json:"outputPath"`
}

// Mirror receives a copy of every successfully transcoded file
type Mirror interface {
	Put(ctx context.Context, key, path, contentType string) error
}

type outcome struct {
	status model.JobStatus
	reason string // metrics label
	err    string
	stderr string
}

// Supervisor runs the encoder for dispatched jobs and records the result.
// It is the only component that moves a job past queued.
type Supervisor struct {
	store   *store.Store
	encoder Encoder
	mirror  Mirror
}

func NewSupervisor(s *store.Store, e Encoder, m Mirror) *Supervisor {
	return &Supervisor{
		store:   s,
		encoder: e,
		mirror:  m,
	}
}

// Run executes one dispatched job to completion. Nothing is returned because
// nobody is waiting; every outcome ends up in the job record.
func (s *Supervisor) Run(ctx context.Context, d Dispatch) {
	log := zap.L().With(zap.String("job_id", d.JobID))

	if ctx.Err() != nil {
		log.Debug("Not starting job, context is done", zap.Error(ctx.Err()))
		return
	}

	var claimed bool
	err := s.store.Update(ctx, func(st *model.State) error {
		_, claimed = ledger.Claim(st, d.JobID)
		if !claimed {
			return errNothingToDo
		}
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		log.Debug("Job is gone or not queued anymore, skipping")
		return
	}
	if err != nil {
		log.Error("Failed to mark job as running", zap.Error(err))
		return
	}

	log.Debug("Job running", zap.String("input", d.InputPath), zap.String("output", d.OutputPath))

	jobsRunning.Inc()
	start := time.Now()
	o := s.encode(ctx, d)
	jobsRunning.Dec()
	encodeDuration.Observe(time.Since(start).Seconds())

	s.finish(ctx, d, o, log)
}

var errNothingToDo = errors.New("nothing to do")

func (s *Supervisor) encode(ctx context.Context, d Dispatch) outcome {
	runCtx := ctx
	if s.encoder.MaxDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.encoder.MaxDuration)
		defer cancel()
	}

	stderr := &tailBuffer{max: stderrLimit}

	cmd := exec.CommandContext(runCtx, s.encoder.Path, s.encoder.Args(d.InputPath, d.OutputPath)...)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	zap.L().Debug("Running encoder command", zap.String("cmd", cmd.String()))

	// There is no process to wait for when the launch itself fails
	if err := cmd.Start(); err != nil {
		removePartial(d.OutputPath)

		if ctx.Err() != nil {
			o := outcome{status: model.StatusError}
			o.reason, o.err = interruption(ctx)
			return o
		}

		return outcome{
			status: model.StatusError,
			reason: "launch_failed",
			err:    fmt.Sprintf("launch failed: %v", err),
		}
	}

	err := cmd.Wait()
	if err == nil {
		return outcome{status: model.StatusDone, reason: "done"}
	}

	removePartial(d.OutputPath)

	o := outcome{
		status: model.StatusError,
		reason: "encode_failed",
		stderr: stderr.String(),
	}

	var exitErr *exec.ExitError

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		o.reason = "timeout"
		o.err = fmt.Sprintf("encode exceeded max duration of %s", s.encoder.MaxDuration)
	case ctx.Err() != nil:
		o.reason, o.err = interruption(ctx)
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		o.err = fmt.Sprintf("encoder exited with code %d", exitErr.ExitCode())
	default:
		o.err = fmt.Sprintf("encoder failed: %v", err)
	}

	return o
}

// interruption tells a dispatcher deadline apart from a shutdown. Both end
// the encode through the caller's ctx.
func interruption(ctx context.Context) (reason, msg string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "deadline", "encode exceeded dispatcher deadline"
	}

	return "interrupted", "encode interrupted: service shutting down"
}

func (s *Supervisor) finish(ctx context.Context, d Dispatch, o outcome, log *zap.Logger) {
	// The outcome has to be recorded even if ctx was cancelled mid-encode
	ctx = context.WithoutCancel(ctx)

	size := int64(-1)
	if o.status == model.StatusDone {
		if st, err := os.Stat(d.OutputPath); err != nil {
			log.Warn("Failed to read size of encoded file, keeping previous size", zap.Error(err))
		} else {
			size = st.Size()
		}
	}

	var job model.Job
	err := s.store.Update(ctx, func(st *model.State) error {
		var err error

		job, err = ledger.Transition(st, d.JobID, o.status, ledger.Fields{Error: o.err})
		if err != nil {
			return err
		}

		if size >= 0 {
			if err := registry.SetSize(st, job.OutputID, size); err != nil && !errors.Is(err, registry.ErrNotFound) {
				return err
			}
		}

		return nil
	})
	if errors.Is(err, ledger.ErrIllegalTransition) {
		log.Panic("Supervisor attempted an illegal transition", zap.Error(err))
	}
	if err != nil {
		log.Error("Failed to record job outcome", zap.String("status", string(o.status)), zap.Error(err))
		return
	}

	jobsFinished.WithLabelValues(o.reason).Inc()

	if o.status == model.StatusError {
		log.Error("Transcode job failed",
			zap.String("user_id", job.Owner),
			zap.String("error", o.err),
			zap.String("stderr", o.stderr))
		return
	}

	log.Info("Transcode job finished", zap.String("user_id", job.Owner), zap.Int64("size", size))

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, filepath.Base(d.OutputPath), d.OutputPath, transcodedMime); err != nil {
			log.Warn("Failed to mirror encoded file", zap.Error(err))
		}
	}
}

// removePartial deletes whatever the encoder left at path. Failures are
// only logged, the job outcome doesn't depend on them.
func removePartial(path string) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		zap.L().Warn("Failed to remove partial output", zap.String("path", path), zap.Error(err))
	}
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.buf)
}
