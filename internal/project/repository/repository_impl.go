package repository

import (
	"context"
	"errors"

	"github.com/trackpilot/revsync/internal/project/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, gdb *gorm.DB, id string) (*domain.Project, error) {
	var project domain.Project
	err := gdb.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, project *domain.Project) error {
	return gdb.WithContext(ctx).Create(project).Error
}
