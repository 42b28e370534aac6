package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRepository 元游戏快照仓储
type SnapshotRepository interface {
	// Upsert 按维度键(date,region,format,best_of,tournament_type)整体写入，幂等
	Upsert(ctx context.Context, s *model.MetaSnapshot) error
	// GetByDimensions 按维度键查找，不存在返回(nil,nil)
	GetByDimensions(ctx context.Context, date time.Time, region, format string, bestOf int, tournamentType string) (*model.MetaSnapshot, error)
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Upsert(ctx context.Context, s *model.MetaSnapshot) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "snapshot_date"}, {Name: "region"}, {Name: "format"},
			{Name: "best_of"}, {Name: "tournament_type"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"archetype_shares", "card_usage", "diversity_index", "tier_assignments",
			"divergence", "trends", "sample_size", "tournaments_included", "updated_at",
		}),
	}).Create(s).Error; err != nil {
		return err
	}
	if s.ID == 0 {
		if err := r.db.WithContext(ctx).Model(s).
			Where("snapshot_date = ? AND region = ? AND format = ? AND best_of = ? AND tournament_type = ?",
				s.SnapshotDate, s.Region, s.Format, s.BestOf, s.TournamentType).
			Select("id").First(s).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *snapshotRepository) GetByDimensions(ctx context.Context, date time.Time, region, format string, bestOf int, tournamentType string) (*model.MetaSnapshot, error) {
	var s model.MetaSnapshot
	err := r.db.WithContext(ctx).
		Where("snapshot_date = ? AND region = ? AND format = ? AND best_of = ? AND tournament_type = ?",
			date, region, format, bestOf, tournamentType).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
