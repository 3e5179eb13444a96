package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/model"
	"github.com/h3nryswan/video-transcoder/internal/registry"
	"github.com/h3nryswan/video-transcoder/internal/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// ErrInputNotFound is returned when the input doesn't exist, isn't an
// original or belongs to someone else
var ErrInputNotFound = errors.New("original file not found")

type Submission struct {
	JobID        string `json:"jobId"`
	OutputFileID string `json:"outputFileId"`
}

type Orchestrator struct {
	store      *store.Store
	dispatcher Dispatcher
	outputDir  string
	newID      func() (string, error)
}

func NewOrchestrator(s *store.Store, d Dispatcher, outputDir string) *Orchestrator {
	return &Orchestrator{
		store:      s,
		dispatcher: d,
		outputDir:  outputDir,
		newID:      func() (string, error) { return gonanoid.New() },
	}
}

// RequestTranscode records a placeholder output file and a queued job in one
// store write, then hands the job to the dispatcher. It returns as soon as
// the records are durable, the encode happens later.
//
// nameFn derives the output name from the input name, nil means
// TranscodedName.
func (o *Orchestrator) RequestTranscode(ctx context.Context, inputID, owner string, nameFn func(string) string) (Submission, error) {
	if nameFn == nil {
		nameFn = TranscodedName
	}

	outputID, err := o.newID()
	if err != nil {
		return Submission{}, fmt.Errorf("failed to generate file id, %w", err)
	}

	jobID, err := o.newID()
	if err != nil {
		return Submission{}, fmt.Errorf("failed to generate job id, %w", err)
	}

	var d Dispatch

	err = o.store.Update(ctx, func(s *model.State) error {
		input, ok := registry.Lookup(s, inputID, owner)
		if !ok || input.Kind != model.KindOriginal {
			return ErrInputNotFound
		}

		now := model.Now()
		name := nameFn(input.Name)

		output := model.File{
			ID:        outputID,
			Owner:     owner,
			Kind:      model.KindTranscoded,
			Name:      name,
			Path:      filepath.Join(o.outputDir, outputID+"_"+name),
			MimeType:  transcodedMime,
			CreatedAt: now,
		}

		if err := registry.Insert(s, output); err != nil {
			return err
		}

		err := ledger.Insert(s, model.Job{
			ID:        jobID,
			Owner:     owner,
			InputID:   input.ID,
			OutputID:  output.ID,
			Status:    model.StatusQueued,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		d = Dispatch{JobID: jobID, InputPath: input.Path, OutputPath: output.Path}
		return nil
	})
	if err != nil {
		return Submission{}, err
	}

	jobsSubmitted.Inc()

	// The job is durable at this point. If it can't be handed over now the
	// requeue sweep picks it up later.
	if err := o.dispatcher.Enqueue(ctx, d); err != nil {
		zap.L().Warn("Failed to dispatch job, leaving it queued",
			zap.String("job_id", jobID),
			zap.Error(err))
	}

	return Submission{JobID: jobID, OutputFileID: outputID}, nil
}
