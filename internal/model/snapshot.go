package model

import (
	"time"

	"gorm.io/datatypes"
)

// RegionGlobal 快照维度中表示全局（不分区域）的取值
const RegionGlobal = "global"

// MetaSnapshot 元游戏快照表，维度键(date,region,format,best_of,tournament_type)唯一，
// 聚合器整体upsert，不存在半写状态
type MetaSnapshot struct {
	ID                  uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	SnapshotDate        time.Time      `gorm:"column:snapshot_date;type:date;not null;uniqueIndex:uk_snapshot_dim;comment:快照日期"`
	Region              string         `gorm:"column:region;type:varchar(32);not null;uniqueIndex:uk_snapshot_dim;comment:区域或global"`
	Format              string         `gorm:"column:format;type:varchar(32);not null;uniqueIndex:uk_snapshot_dim;comment:赛制"`
	BestOf              int            `gorm:"column:best_of;type:int;not null;uniqueIndex:uk_snapshot_dim;comment:局数"`
	TournamentType      string         `gorm:"column:tournament_type;type:varchar(32);not null;default:'';uniqueIndex:uk_snapshot_dim;comment:赛事类型，可为空串"`
	ArchetypeShares     datatypes.JSON `gorm:"column:archetype_shares;type:jsonb;not null;comment:卡组占比 name→share"`
	CardUsage           datatypes.JSON `gorm:"column:card_usage;type:jsonb;comment:卡片使用率 card_id→{inclusion_rate,avg_count}"`
	DiversityIndex      float64        `gorm:"column:diversity_index;type:numeric(8,6);default:0;comment:Simpson多样性指数"`
	TierAssignments     datatypes.JSON `gorm:"column:tier_assignments;type:jsonb;comment:卡组分级 name→S/A/B/C/Rogue"`
	Divergence          datatypes.JSON `gorm:"column:divergence;type:jsonb;comment:区域分歧信号数组"`
	Trends              datatypes.JSON `gorm:"column:trends;type:jsonb;comment:7天趋势 name→{direction,delta,previous_share}"`
	SampleSize          int            `gorm:"column:sample_size;type:int;default:0;comment:纳入的placement数"`
	TournamentsIncluded int            `gorm:"column:tournaments_included;type:int;default:0;comment:纳入的赛事数"`
	CreatedAt           time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (MetaSnapshot) TableName() string { return "meta_snapshots" }

// CardUsageEntry 单张卡在快照中的使用统计
type CardUsageEntry struct {
	InclusionRate float64 `json:"inclusion_rate"` // 含此卡的卡组占比
	AvgCount      float64 `json:"avg_count"`      // 含此卡的卡组中的平均张数
}

// DivergenceSignal 单个卡组在区域与全局之间的占比分歧
type DivergenceSignal struct {
	Archetype   string  `json:"archetype"`
	RegionShare float64 `json:"region_share"`
	GlobalShare float64 `json:"global_share"`
	Diff        float64 `json:"diff"` // 带符号差值：region - global
}

// TrendEntry 单个卡组相对7天前快照的趋势
type TrendEntry struct {
	Direction     string   `json:"direction"` // stable/up/down
	Delta         float64  `json:"delta"`
	PreviousShare *float64 `json:"previous_share"` // 7天前不存在该卡组时为null
}
