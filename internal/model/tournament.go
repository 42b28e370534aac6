package model

import (
	"time"

	"gorm.io/datatypes"
)

// Tournament 规范赛事主表（同一场线下赛事多来源去重后一条，永不删除）
type Tournament struct {
	ID              uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	TournamentUUID  string     `gorm:"column:tournament_uuid;type:varchar(64);uniqueIndex;not null;comment:全局唯一ID"`
	Name            string     `gorm:"column:name;type:varchar(256);not null;comment:赛事名称"`
	Date            time.Time  `gorm:"column:date;type:date;not null;comment:比赛日期"`
	Region          string     `gorm:"column:region;type:varchar(32);index;comment:区域：JP/NA/EU/LATAM/OCE/ASIA"`
	Country         string     `gorm:"column:country;type:varchar(64);comment:国家"`
	City            string     `gorm:"column:city;type:varchar(128);comment:城市"`
	Venue           string     `gorm:"column:venue;type:varchar(256);comment:场馆"`
	Format          string     `gorm:"column:format;type:varchar(32);index;comment:赛制：standard/expanded"`
	BestOf          int        `gorm:"column:best_of;type:int;default:3;comment:局数：1/3"`
	Tier            string     `gorm:"column:tier;type:varchar(32);comment:赛事级别：regional/international/city_league等"`
	TournamentType  string     `gorm:"column:tournament_type;type:varchar(32);comment:赛事类型：official/grassroots"`
	Status          string     `gorm:"column:status;type:varchar(32);not null;default:announced;comment:生命周期状态，仅允许前向推进"`
	Source          string     `gorm:"column:source;type:varchar(128);not null;comment:贡献来源列表，逗号连接"`
	SourceURL       string     `gorm:"column:source_url;type:varchar(512);uniqueIndex;not null;comment:来源页面URL"`
	RegistrationURL string     `gorm:"column:registration_url;type:varchar(512);comment:报名页面URL"`
	PlayerCount     int        `gorm:"column:player_count;type:int;default:0;comment:参赛人数"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
	Placements      []Placement `gorm:"foreignKey:TournamentID"`
}

// Placement 单个选手在单场赛事内的最终名次与卡组（入库后除卡组归类重解析外不可变）
type Placement struct {
	ID               uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	TournamentID     uint64         `gorm:"column:tournament_id;type:bigint;not null;uniqueIndex:uk_tournament_rank;comment:关联赛事ID"`
	Rank             int            `gorm:"column:rank;type:int;not null;uniqueIndex:uk_tournament_rank;comment:名次，单场赛事内唯一"`
	Player           string         `gorm:"column:player;type:varchar(128);not null;comment:选手名"`
	Country          string         `gorm:"column:country;type:varchar(64);comment:选手国家"`
	Archetype        string         `gorm:"column:archetype;type:varchar(128);index;not null;comment:卡组归类名"`
	ResolutionMethod string         `gorm:"column:resolution_method;type:varchar(32);not null;comment:归类方式：sprite_lookup/auto_derive/text_label"`
	FingerprintKey   string         `gorm:"column:fingerprint_key;type:varchar(256);comment:抓取时的角色图指纹键，映射表补齐后供重解析用"`
	Decklist         datatypes.JSON `gorm:"column:decklist;type:jsonb;comment:卡组列表，[{card_id,count}]有序数组"`
	CreatedAt        time.Time      `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

// DecklistCard 卡组内单张卡的条目（Placement.Decklist的元素）
type DecklistCard struct {
	CardID string `json:"card_id"`
	Count  int    `json:"count"`
}

func (Tournament) TableName() string { return "tournaments" }
func (Placement) TableName() string  { return "placements" }
