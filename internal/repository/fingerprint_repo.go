package repository

import (
	"context"

	"github.com/dtsong/trainerlab-sub000/internal/model"

	"gorm.io/gorm"
)

// FingerprintRepository 指纹映射表仓储（表内容离线维护，这里只读）
type FingerprintRepository interface {
	ListAll(ctx context.Context) ([]*model.ArchetypeFingerprint, error)
}

type fingerprintRepository struct {
	db *gorm.DB
}

func NewFingerprintRepository(db *gorm.DB) FingerprintRepository {
	return &fingerprintRepository{db: db}
}

func (r *fingerprintRepository) ListAll(ctx context.Context) ([]*model.ArchetypeFingerprint, error) {
	var list []*model.ArchetypeFingerprint
	if err := r.db.WithContext(ctx).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
