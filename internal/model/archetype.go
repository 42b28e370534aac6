package model

import "time"

// 卡组归类方式
const (
	MethodSpriteLookup = "sprite_lookup" // 角色图指纹精确命中映射表
	MethodAutoDerive   = "auto_derive"   // 部分指纹启发式推导
	MethodTextLabel    = "text_label"    // 清洗后的自由文本兜底
)

// ArchetypeFingerprint 角色图指纹→卡组名映射表（可离线维护更新）。
// FingerprintKey 为多个指纹排序后用"+"连接的规范形式。
type ArchetypeFingerprint struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	FingerprintKey string    `gorm:"column:fingerprint_key;type:varchar(256);uniqueIndex;not null;comment:排序连接后的指纹键"`
	ArchetypeName  string    `gorm:"column:archetype_name;type:varchar(128);not null;comment:规范卡组名"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (ArchetypeFingerprint) TableName() string { return "archetype_fingerprints" }
