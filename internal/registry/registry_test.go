package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/h3nryswan/video-transcoder/internal/model"
	"github.com/h3nryswan/video-transcoder/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()

	d, err := store.NewDocument(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)

	s, err := store.Open(context.Background(), d)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return New(s)
}

func TestRegisterAndFind(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	f := model.File{ID: "f1", Owner: "u1", Kind: model.KindOriginal, Name: "clip.mov", Size: 10, CreatedAt: 1}
	_, err := r.Register(ctx, f)
	require.NoError(t, err)

	got, ok, err := r.FindByID(ctx, "f1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f, got)
}

func TestRegisterDuplicate(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, model.File{ID: "f1", Owner: "u1"})
	require.NoError(t, err)

	_, err = r.Register(ctx, model.File{ID: "f1", Owner: "u2"})
	require.ErrorIs(t, err, ErrDuplicateID)

	files, err := r.ListByOwner(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFindByIDWrongOwnerLooksLikeMissing(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, model.File{ID: "f1", Owner: "u1"})
	require.NoError(t, err)

	foreign, foreignOK, foreignErr := r.FindByID(ctx, "f1", "u2")
	missing, missingOK, missingErr := r.FindByID(ctx, "nope", "u2")

	assert.Equal(t, missing, foreign)
	assert.Equal(t, missingOK, foreignOK)
	assert.Equal(t, missingErr, foreignErr)
	assert.False(t, foreignOK)
}

func TestListByOwnerNewestFirst(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	for _, f := range []model.File{
		{ID: "a", Owner: "u1", CreatedAt: 100},
		{ID: "b", Owner: "u1", CreatedAt: 300},
		{ID: "c", Owner: "u2", CreatedAt: 200},
		{ID: "d", Owner: "u1", CreatedAt: 200},
	} {
		_, err := r.Register(ctx, f)
		require.NoError(t, err)
	}

	files, err := r.ListByOwner(ctx, "u1")
	require.NoError(t, err)

	ids := []string{}
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"b", "d", "a"}, ids)
}

func TestUpdateSize(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	_, err := r.Register(ctx, model.File{ID: "f1", Owner: "u1"})
	require.NoError(t, err)

	require.NoError(t, r.UpdateSize(ctx, "f1", 4096))
	require.ErrorIs(t, r.UpdateSize(ctx, "missing", 1), ErrNotFound)

	f, ok, err := r.FindByID(ctx, "f1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4096), f.Size)
}
