package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TaskTranscode = "transcode:run"

	asynqQueue = "transcode"

	// asynq cancels handlers after 30 minutes unless told otherwise
	unboundedTaskTimeout = 24 * time.Hour
	taskTimeoutSlack     = time.Minute
)

// AsynqDispatcher hands jobs to a redis backed queue. Workers in this or
// any other process pick them up through AsynqWorker.
type AsynqDispatcher struct {
	client  *asynq.Client
	timeout time.Duration
}

func NewAsynqDispatcher(redisAddr string, maxDuration time.Duration) *AsynqDispatcher {
	timeout := unboundedTaskTimeout
	if maxDuration > 0 {
		timeout = maxDuration + taskTimeoutSlack
	}

	return &AsynqDispatcher{
		client:  asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
		timeout: timeout,
	}
}

func (a *AsynqDispatcher) Enqueue(ctx context.Context, d Dispatch) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch, %w", err)
	}

	task := asynq.NewTask(TaskTranscode, payload)

	_, err = a.client.EnqueueContext(ctx, task,
		asynq.TaskID(d.JobID),
		asynq.Queue(asynqQueue),
		asynq.MaxRetry(0),
		asynq.Timeout(a.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue task, %w", err)
	}

	zap.L().Debug("New transcode task enqueued", zap.String("job_id", d.JobID))
	return nil
}

func (a *AsynqDispatcher) Close() error {
	return a.client.Close()
}

// AsynqWorker consumes transcode tasks and runs them through the supervisor
type AsynqWorker struct {
	srv *asynq.Server
	sup *Supervisor
}

func NewAsynqWorker(redisAddr string, sup *Supervisor, concurrency int) *AsynqWorker {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{asynqQueue: 1},
		Logger:      zap.S(),
	})

	return &AsynqWorker{
		srv: srv,
		sup: sup,
	}
}

func (w *AsynqWorker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTranscode, w.handle)

	if err := w.srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start asynq server, %w", err)
	}

	return nil
}

func (w *AsynqWorker) Stop() {
	w.srv.Shutdown()
}

func (w *AsynqWorker) handle(ctx context.Context, t *asynq.Task) error {
	var d Dispatch
	if err := json.Unmarshal(t.Payload(), &d); err != nil {
		zap.L().Error("Dropping malformed transcode task", zap.Error(err))
		return fmt.Errorf("malformed payload, %v: %w", err, asynq.SkipRetry)
	}

	w.sup.Run(ctx, d)
	return nil
}
