package model

import "time"

// 抓取记录的日期可信度
const (
	DateConfidenceParsed = "parsed" // 从页面解析得到
	DateConfidenceLow    = "low"    // 页面缺失日期，回退为当天
)

// ScrapedTournament 单次抓取产生的赛事中间记录（合并入规范Tournament后即丢弃）
type ScrapedTournament struct {
	Source          string    // 来源标识（如 limitless/rk9）
	Name            string    // 赛事名称原文
	Date            time.Time // 解析后的日期
	DateConfidence  string    // parsed/low
	RawStatus       string    // 来源站点的原始状态词汇
	Country         string
	City            string
	Venue           string
	Region          string
	Format          string
	BestOf          int
	Tier            string
	TournamentType  string
	PlayerCount     int
	SourceURL       string
	RegistrationURL string
	Placements      []*ScrapedPlacement
}

// ScrapedPlacement 单次抓取产生的名次中间记录
type ScrapedPlacement struct {
	Rank         int
	Player       string
	Country      string
	Fingerprints []string       // 角色图指纹（可为空）
	RawLabel     string         // 卡组文本标签原文（可为空）
	Decklist     []DecklistCard // 卡组列表（可为空）
}
