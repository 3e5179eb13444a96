package store

import (
	"context"
	"fmt"

	"github.com/h3nryswan/video-transcoder/internal/model"

	"gorm.io/gorm"
)

const batchSize = 200

// SQL persists the state in a files and a jobs table. A save replaces both
// tables inside one transaction, so a commit is always the whole state.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&model.File{}, &model.Job{}); err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return &SQL{db: db}, nil
}

func (b *SQL) Load(ctx context.Context) (*model.State, error) {
	s := model.NewState()

	if err := b.db.WithContext(ctx).Order("created_at asc, id asc").Find(&s.Files).Error; err != nil {
		return nil, fmt.Errorf("failed to load files, %w", err)
	}

	if err := b.db.WithContext(ctx).Order("created_at asc, id asc").Find(&s.Jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to load jobs, %w", err)
	}

	return s, nil
}

func (b *SQL) Save(ctx context.Context, s *model.State) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Job{}).Error; err != nil {
			return fmt.Errorf("failed to clear jobs, %w", err)
		}

		if err := tx.Where("1 = 1").Delete(&model.File{}).Error; err != nil {
			return fmt.Errorf("failed to clear files, %w", err)
		}

		if len(s.Files) > 0 {
			if err := tx.CreateInBatches(&s.Files, batchSize).Error; err != nil {
				return fmt.Errorf("failed to write files, %w", err)
			}
		}

		if len(s.Jobs) > 0 {
			if err := tx.CreateInBatches(&s.Jobs, batchSize).Error; err != nil {
				return fmt.Errorf("failed to write jobs, %w", err)
			}
		}

		return nil
	})
}

func (b *SQL) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
