// Package registry tracks uploaded originals and transcoded outputs
package registry

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
	ErrDuplicateID = errors.New("file id already exists")
	ErrNotFound    = errors.New("file not found")
)

type Registry struct {
	store *store.Store
}

func New(s *store.Store) *Registry {
	return &Registry{store: s}
}

func (r *Registry) Register(ctx context.Context, f model.File) (model.File, error) {
	err := r.store.Update(ctx, func(s *model.State) error {
		return Insert(s, f)
	})
	if err != nil {
		return model.File{}, err
	}

	return f, nil
}

// FindByID only returns files owned by owner. A file of another owner is
// reported exactly like a file that doesn't exist.
func (r *Registry) FindByID(ctx context.Context, id, owner string) (f model.File, ok bool, err error) {
	err = r.store.View(ctx, func(s *model.State) error {
		f, ok = Lookup(s, id, owner)
		return nil
	})

	return f, ok, err
}

// ListByOwner returns the files of owner, newest first
func (r *Registry) ListByOwner(ctx context.Context, owner string) ([]model.File, error) {
	files := []model.File{}

	err := r.store.View(ctx, func(s *model.State) error {
		for _, f := range s.Files {
			if f.Owner == owner {
				files = append(files, f)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(files, func(a, b model.File) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return files, nil
}

func (r *Registry) UpdateSize(ctx context.Context, id string, size int64) error {
	return r.store.Update(ctx, func(s *model.State) error {
		return SetSize(s, id, size)
	})
}

// Insert adds f to the state. Meant to be called inside a store update.
func Insert(s *model.State, f model.File) error {
	if index(s, f.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, f.ID)
	}

	s.Files = append(s.Files, f)
	return nil
}

// Lookup is the ownership scoped lookup used by FindByID
func Lookup(s *model.State, id, owner string) (model.File, bool) {
	i := index(s, id)
	if i < 0 || s.Files[i].Owner != owner {
		return model.File{}, false
	}

	return s.Files[i], true
}

func SetSize(s *model.State, id string, size int64) error {
	i := index(s, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.Files[i].Size = size
	return nil
}

func index(s *model.State, id string) int {
	return slices.IndexFunc(s.Files, func(f model.File) bool {
		return f.ID == id
	})
}
