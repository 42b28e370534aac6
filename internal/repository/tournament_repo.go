package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AggregationFilter 聚合取数的维度过滤
type AggregationFilter struct {
	Region         string // 空=不过滤（global）
	Format         string
	BestOf         int
	TournamentType string // 空=不过滤
}

// TournamentRepository 规范赛事仓储
type TournamentRepository interface {
	// FindBySourceURL 按来源URL精确查找，不存在返回(nil,nil)
	FindBySourceURL(ctx context.Context, sourceURL string) (*model.Tournament, error)
	// FindDedupCandidates 拉取日期窗口内的候选赛事（跨源同场判定在服务层做规范化比较）
	FindDedupCandidates(ctx context.Context, from, to time.Time) ([]*model.Tournament, error)
	// Create 事务内创建赛事与名次
	Create(ctx context.Context, t *model.Tournament, placements []*model.Placement) error
	// Update 事务内更新赛事；该赛事尚无名次且本次带有名次时一并写入
	Update(ctx context.Context, t *model.Tournament, placements []*model.Placement) error
	// ListForAggregation 拉取窗口内已结束赛事（带名次），供聚合器使用
	ListForAggregation(ctx context.Context, from, to time.Time, filter AggregationFilter) ([]*model.Tournament, error)
	// HasPlacements 该赛事是否已有名次（名次入库后不可变）
	HasPlacements(ctx context.Context, tournamentID uint64) (bool, error)
	// ListTextLabelPlacements 拉取靠文本兜底归类且带指纹的名次（重解析用）
	ListTextLabelPlacements(ctx context.Context, limit int) ([]*model.Placement, error)
	// UpdatePlacementArchetype 重解析后更新名次的卡组归类
	UpdatePlacementArchetype(ctx context.Context, placementID uint64, archetype, method string) error
}

type tournamentRepository struct {
	db *gorm.DB
}

func NewTournamentRepository(db *gorm.DB) TournamentRepository {
	return &tournamentRepository{db: db}
}

func (r *tournamentRepository) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Tournament, error) {
	var t model.Tournament
	err := r.db.WithContext(ctx).Where("source_url = ?", sourceURL).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tournamentRepository) FindDedupCandidates(ctx context.Context, from, to time.Time) ([]*model.Tournament, error) {
	var list []*model.Tournament
	if err := r.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Create 单场赛事为一个事务单元：赛事行+全部名次行一起提交或一起回滚
func (r *tournamentRepository) Create(ctx context.Context, t *model.Tournament, placements []*model.Placement) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
		}
	}()

	if t.TournamentUUID == "" {
		t.TournamentUUID = uuid.NewString() // 生成全局唯一ID
	}
	if err := tx.Create(t).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("保存Tournament失败: %w, name: %s", err, t.Name)
	}
	for i := range placements {
		placements[i].TournamentID = t.ID
		if err := tx.Create(placements[i]).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("保存Placement失败: %w, rank: %d", err, placements[i].Rank)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (r *tournamentRepository) Update(ctx context.Context, t *model.Tournament, placements []*model.Placement) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(t).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("更新Tournament失败: %w, id: %d", err, t.ID)
	}

	// 名次入库后不可变：仅当该赛事尚无任何名次时写入本次抓到的名次
	if len(placements) > 0 {
		var existing int64
		if err := tx.Model(&model.Placement{}).Where("tournament_id = ?", t.ID).Count(&existing).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("查询已有名次失败: %w", err)
		}
		if existing == 0 {
			for i := range placements {
				placements[i].TournamentID = t.ID
				if err := tx.Create(placements[i]).Error; err != nil {
					tx.Rollback()
					return fmt.Errorf("保存Placement失败: %w, rank: %d", err, placements[i].Rank)
				}
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (r *tournamentRepository) ListForAggregation(ctx context.Context, from, to time.Time, filter AggregationFilter) ([]*model.Tournament, error) {
	db := r.db.WithContext(ctx).
		Preload("Placements").
		Where("status = ?", model.StatusCompleted).
		Where("date >= ? AND date <= ?", from, to)
	if filter.Region != "" && filter.Region != model.RegionGlobal {
		db = db.Where("region = ?", filter.Region)
	}
	if filter.Format != "" {
		db = db.Where("format = ?", filter.Format)
	}
	if filter.BestOf > 0 {
		db = db.Where("best_of = ?", filter.BestOf)
	}
	if filter.TournamentType != "" {
		db = db.Where("tournament_type = ?", filter.TournamentType)
	}
	var list []*model.Tournament
	if err := db.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *tournamentRepository) HasPlacements(ctx context.Context, tournamentID uint64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Placement{}).
		Where("tournament_id = ?", tournamentID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *tournamentRepository) ListTextLabelPlacements(ctx context.Context, limit int) ([]*model.Placement, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	var list []*model.Placement
	if err := r.db.WithContext(ctx).
		Where("resolution_method = ? AND fingerprint_key <> ''", model.MethodTextLabel).
		Order("id ASC").Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *tournamentRepository) UpdatePlacementArchetype(ctx context.Context, placementID uint64, archetype, method string) error {
	return r.db.WithContext(ctx).Model(&model.Placement{}).
		Where("id = ?", placementID).
		Updates(map[string]interface{}{
			"archetype":         archetype,
			"resolution_method": method,
			"updated_at":        time.Now(),
		}).Error
}
