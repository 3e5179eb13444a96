package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/h3nryswan/video-transcoder/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// flakyBackend keeps the last saved state in memory and fails saves on demand
type flakyBackend struct {
	mu    sync.Mutex
	saved *model.State
	fail  bool
	saves int
}

func (b *flakyBackend) Load(context.Context) (*model.State, error) {
	return model.NewState(), nil
}

func (b *flakyBackend) Save(_ context.Context, s *model.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail {
		return errors.New("disk full")
	}

	b.saves++
	b.saved = s.Clone()
	return nil
}

func (b *flakyBackend) Close() error { return nil }

func countFiles(t *testing.T, s *Store) int {
	t.Helper()

	var n int
	require.NoError(t, s.View(context.Background(), func(st *model.State) error {
		n = len(st.Files)
		return nil
	}))

	return n
}

func TestUpdateCommitsAfterSave(t *testing.T) {
	b := &flakyBackend{}
	s, err := Open(context.Background(), b)
	require.NoError(t, err)
	defer s.Close()

	err = s.Update(context.Background(), func(st *model.State) error {
		st.Files = append(st.Files, model.File{ID: "f1", Owner: "u1"})
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countFiles(t, s))
	assert.Equal(t, 1, b.saves)
	require.Len(t, b.saved.Files, 1)
}

func TestUpdateErrorKeepsPreviousState(t *testing.T) {
	b := &flakyBackend{}
	s, err := Open(context.Background(), b)
	require.NoError(t, err)
	defer s.Close()

	sentinel := errors.New("nope")
	err = s.Update(context.Background(), func(st *model.State) error {
		st.Files = append(st.Files, model.File{ID: "f1"})
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	assert.Equal(t, 0, countFiles(t, s))
	assert.Equal(t, 0, b.saves)
}

func TestSaveFailureRollsBack(t *testing.T) {
	b := &flakyBackend{fail: true}
	s, err := Open(context.Background(), b)
	require.NoError(t, err)
	defer s.Close()

	err = s.Update(context.Background(), func(st *model.State) error {
		st.Files = append(st.Files, model.File{ID: "f1"})
		return nil
	})
	require.ErrorIs(t, err, ErrPersistence)

	assert.Equal(t, 0, countFiles(t, s))
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	b := &flakyBackend{}
	s, err := Open(context.Background(), b)
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(context.Background(), func(st *model.State) error {
				st.Files = append(st.Files, model.File{ID: fmt.Sprintf("f%d", i)})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, countFiles(t, s))
	assert.Equal(t, 50, b.saves)
	assert.Len(t, b.saved.Files, 50)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(context.Background(), &flakyBackend{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.View(context.Background(), func(*model.State) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func sampleState() *model.State {
	started := int64(1700000000100)
	finished := int64(1700000000200)
	msg := "encoder exited with code 1"

	s := model.NewState()
	s.Files = append(s.Files,
		model.File{ID: "in", Owner: "u1", Kind: model.KindOriginal, Name: "clip.mov", Path: "/data/uploads/in_clip.mov", Size: 2048, MimeType: "video/quicktime", CreatedAt: 1700000000000},
		model.File{ID: "out", Owner: "u1", Kind: model.KindTranscoded, Name: "clip_transcoded.mp4", Path: "/data/outputs/out_clip_transcoded.mp4", MimeType: "video/mp4", CreatedAt: 1700000000050},
	)
	s.Jobs = append(s.Jobs, model.Job{
		ID: "j1", Owner: "u1", InputID: "in", OutputID: "out", Status: model.StatusError,
		StartedAt: &started, FinishedAt: &finished, Error: &msg, CreatedAt: 1700000000050,
	})

	return s
}

func TestDocumentFirstLoadCreatesEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.json")

	d, err := NewDocument(path)
	require.NoError(t, err)

	s, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Files)
	assert.NotNil(t, s.Files)
	assert.NotNil(t, s.Jobs)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"files": [], "jobs": []}`, string(data))
}

func TestDocumentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")

	d, err := NewDocument(path)
	require.NoError(t, err)

	want := sampleState()
	require.NoError(t, d.Save(context.Background(), want))

	reopened, err := NewDocument(path)
	require.NoError(t, err)

	got, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// No temporary files are left next to the document
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDocumentRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	d, err := NewDocument(path)
	require.NoError(t, err)

	_, err = d.Load(context.Background())
	assert.Error(t, err)
}

func TestStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")

	d, err := NewDocument(path)
	require.NoError(t, err)

	s, err := Open(context.Background(), d)
	require.NoError(t, err)

	want := sampleState()
	require.NoError(t, s.Update(context.Background(), func(st *model.State) error {
		*st = *want.Clone()
		return nil
	}))
	require.NoError(t, s.Close())

	d2, err := NewDocument(path)
	require.NoError(t, err)

	s2, err := Open(context.Background(), d2)
	require.NoError(t, err)
	defer s2.Close()

	require.NoError(t, s2.View(context.Background(), func(st *model.State) error {
		assert.Equal(t, want, st)
		return nil
	}))
}

func TestSQLRoundTrip(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "database.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	b, err := NewSQL(db)
	require.NoError(t, err)
	defer b.Close()

	empty, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, empty.Files)
	assert.Empty(t, empty.Jobs)

	want := sampleState()
	require.NoError(t, b.Save(context.Background(), want))

	got, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A second save replaces instead of appending
	next := want.Clone()
	next.Files = next.Files[:1]
	next.Jobs = []model.Job{}
	require.NoError(t, b.Save(context.Background(), next))

	got, err = b.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Files, 1)
	assert.Empty(t, got.Jobs)
}
