package source

import (
	"context"
	"strings"

	"github.com/dtsong/trainerlab-sub000/internal/config"
	"github.com/dtsong/trainerlab-sub000/internal/model"

	"github.com/sirupsen/logrus"
)

// SourceAdapter 所有赛事源必须实现的核心接口
type SourceAdapter interface {
	GetName() string                                                        // 来源标识
	FetchTournaments(ctx context.Context) ([]*model.ScrapedTournament, error) // 抓取并解析赛事与名次
	NormalizeStatus(raw string) string                                      // 原始状态词汇→规范状态
}

// Factory 来源适配器工厂函数签名（新增来源仅需注册工厂）
type Factory func(cfg *config.SourceConfig, logger *logrus.Logger) SourceAdapter

// NormalizeStatusWith 按来源词汇表归一化状态，未识别的值保守默认announced
func NormalizeStatusWith(vocab map[string]string, raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := vocab[key]; ok {
		return canonical
	}
	return model.StatusAnnounced
}

// countryRegion 国家→区域静态词汇表（数据放置，无行为逻辑）
var countryRegion = map[string]string{
	"japan":          "JP",
	"united states":  "NA",
	"usa":            "NA",
	"canada":         "NA",
	"mexico":         "LATAM",
	"brazil":         "LATAM",
	"chile":          "LATAM",
	"argentina":      "LATAM",
	"peru":           "LATAM",
	"colombia":       "LATAM",
	"united kingdom": "EU",
	"germany":        "EU",
	"france":         "EU",
	"italy":          "EU",
	"spain":          "EU",
	"netherlands":    "EU",
	"belgium":        "EU",
	"poland":         "EU",
	"portugal":       "EU",
	"norway":         "EU",
	"sweden":         "EU",
	"denmark":        "EU",
	"finland":        "EU",
	"ireland":        "EU",
	"austria":        "EU",
	"switzerland":    "EU",
	"czech republic": "EU",
	"australia":      "OCE",
	"new zealand":    "OCE",
	"singapore":      "ASIA",
	"malaysia":       "ASIA",
	"thailand":       "ASIA",
	"philippines":    "ASIA",
	"indonesia":      "ASIA",
	"south korea":    "ASIA",
	"taiwan":         "ASIA",
	"hong kong":      "ASIA",
}

// RegionForCountry 国家名→区域，未收录返回空串（留给规范记录按需补齐）
func RegionForCountry(country string) string {
	return countryRegion[strings.ToLower(strings.TrimSpace(country))]
}
