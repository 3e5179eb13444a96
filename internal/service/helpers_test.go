package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/model"
	"github.com/h3nryswan/video-transcoder/internal/registry"
	"github.com/h3nryswan/video-transcoder/internal/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"
)

const (
	encodedBody = "transcoded bytes"

	okScript = `for a; do out="$a"; done
printf 'transcoded bytes' > "$out"
`
	failScript = `for a; do out="$a"; done
printf 'partial' > "$out"
echo "unknown encoder" >&2
exit 1
`
	slowScript = `for a; do out="$a"; done
printf 'partial' > "$out"
exec sleep 10
`
)

// fakeEncoder writes an executable shell script that stands in for ffmpeg
func fakeEncoder(t *testing.T, body string) Encoder {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))

	e := DefaultEncoder()
	e.Path = path
	return e
}

type testEnv struct {
	dir   string
	store *store.Store
	sup   *Supervisor
	queue *JobQueue
	orch  *Orchestrator
}

func newTestEnv(t *testing.T, enc Encoder) *testEnv {
	t.Helper()

	dir := t.TempDir()

	b, err := store.NewDocument(filepath.Join(dir, "db.json"))
	require.NoError(t, err)

	s, err := store.Open(context.Background(), b)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sup := NewSupervisor(s, enc, nil)
	q := NewJobQueue(sup, 2, 8)
	q.StartWorkerPool(context.Background())
	t.Cleanup(q.Stop)

	return &testEnv{
		dir:   dir,
		store: s,
		sup:   sup,
		queue: q,
		orch:  NewOrchestrator(s, q, dir),
	}
}

func (e *testEnv) addOriginal(t *testing.T, owner, name string) model.File {
	t.Helper()

	id := gonanoid.Must()
	path := filepath.Join(e.dir, id+"_"+name)
	require.NoError(t, os.WriteFile(path, []byte("source"), 0o644))

	f, err := registry.New(e.store).Register(context.Background(), model.File{
		ID:        id,
		Owner:     owner,
		Kind:      model.KindOriginal,
		Name:      name,
		Path:      path,
		Size:      6,
		MimeType:  "video/quicktime",
		CreatedAt: model.Now(),
	})
	require.NoError(t, err)

	return f
}

func (e *testEnv) waitStatus(t *testing.T, jobID string, done func(model.JobStatus) bool) model.Job {
	t.Helper()

	jobs := ledger.New(e.store)

	var j model.Job
	require.Eventually(t, func() bool {
		got, ok, err := jobs.Get(context.Background(), jobID)
		if err != nil || !ok {
			return false
		}
		j = got
		return done(got.Status)
	}, 10*time.Second, 20*time.Millisecond)

	return j
}

func (e *testEnv) waitTerminal(t *testing.T, jobID string) model.Job {
	return e.waitStatus(t, jobID, model.JobStatus.Terminal)
}

func (e *testEnv) file(t *testing.T, id, owner string) model.File {
	t.Helper()

	f, ok, err := registry.New(e.store).FindByID(context.Background(), id, owner)
	require.NoError(t, err)
	require.True(t, ok)
	return f
}

func (e *testEnv) counts(t *testing.T) (files, jobs int) {
	t.Helper()

	require.NoError(t, e.store.View(context.Background(), func(s *model.State) error {
		files, jobs = len(s.Files), len(s.Jobs)
		return nil
	}))
	return
}

// recordingDispatcher remembers every dispatch and can be told to fail
type recordingDispatcher struct {
	mu   sync.Mutex
	got  []Dispatch
	fail error
}

func (r *recordingDispatcher) Enqueue(_ context.Context, d Dispatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return r.fail
	}

	r.got = append(r.got, d)
	return nil
}

func (r *recordingDispatcher) dispatched() []Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Dispatch(nil), r.got...)
}
