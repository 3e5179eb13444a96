package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignInputIsNotFound(t *testing.T) {
	env := newTestEnv(t, fakeEncoder(t, okScript))
	in := env.addOriginal(t, "u1", "clip.mov")

	_, err := env.orch.RequestTranscode(context.Background(), in.ID, "u2", nil)
	require.ErrorIs(t, err, ErrInputNotFound)

	files, jobs := env.counts(t)
	assert.Equal(t, 1, files)
	assert.Zero(t, jobs)
}

func TestUnknownInputIsNotFound(t *testing.T) {
	env := newTestEnv(t, fakeEncoder(t, okScript))

	_, err := env.orch.RequestTranscode(context.Background(), "missing", "u1", nil)
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestTranscodedFileCannotBeInput(t *testing.T) {
	env := newTestEnv(t, fakeEncoder(t, okScript))
	in := env.addOriginal(t, "u1", "clip.mov")

	sub, err := env.orch.RequestTranscode(context.Background(), in.ID, "u1", nil)
	require.NoError(t, err)
	env.waitTerminal(t, sub.JobID)

	_, err = env.orch.RequestTranscode(context.Background(), sub.OutputFileID, "u1", nil)
	require.ErrorIs(t, err, ErrInputNotFound)
}

func TestSubmissionRecordsPlaceholder(t *testing.T) {
	s := newTestEnv(t, fakeEncoder(t, okScript))
	in := s.addOriginal(t, "u1", "holiday.mkv")

	d := &recordingDispatcher{}
	orch := NewOrchestrator(s.store, d, filepath.Join(s.dir, "outputs"))

	sub, err := orch.RequestTranscode(context.Background(), in.ID, "u1", strings.ToUpper)
	require.NoError(t, err)

	out := s.file(t, sub.OutputFileID, "u1")
	assert.Equal(t, "HOLIDAY.MKV", out.Name)
	assert.Equal(t, filepath.Join(s.dir, "outputs", out.ID+"_HOLIDAY.MKV"), out.Path)
	assert.Zero(t, out.Size)

	j, ok, err := ledger.New(s.store).FindByID(context.Background(), sub.JobID, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, j.Status)
	assert.Nil(t, j.StartedAt)
	assert.Nil(t, j.FinishedAt)

	require.Equal(t, []Dispatch{{JobID: sub.JobID, InputPath: in.Path, OutputPath: out.Path}}, d.dispatched())
}

func TestDispatchFailureKeepsJobQueued(t *testing.T) {
	s := newTestEnv(t, fakeEncoder(t, okScript))
	in := s.addOriginal(t, "u1", "clip.mov")

	orch := NewOrchestrator(s.store, &recordingDispatcher{fail: errors.New("redis down")}, s.dir)

	sub, err := orch.RequestTranscode(context.Background(), in.ID, "u1", nil)
	require.NoError(t, err)

	j, ok, err := ledger.New(s.store).Get(context.Background(), sub.JobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, j.Status)
}
