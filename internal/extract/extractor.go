package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// ListingStrategy 赛事列表行的一种解析策略。
// Try 对单行markup尝试解析，元素不符合该策略的结构时返回false。
type ListingStrategy struct {
	Name string
	Try  func(row *goquery.Selection) (*model.ScrapedTournament, bool)
}

// PlacementStrategy 名次行的一种解析策略
type PlacementStrategy struct {
	Name string
	Try  func(row *goquery.Selection) (*model.ScrapedPlacement, bool)
}

// Extractor 级联选择器解析引擎：按注册顺序（最具体优先）逐个尝试策略，
// 第一个产出可用记录的策略生效。策略全部失败时该行被跳过并记日志，
// 不会让整批解析中断。
type Extractor struct {
	logger     *logrus.Logger
	listings   []ListingStrategy
	placements []PlacementStrategy
}

// NewExtractor 创建解析引擎（策略由各来源适配器注册）
func NewExtractor(logger *logrus.Logger, listings []ListingStrategy, placements []PlacementStrategy) *Extractor {
	return &Extractor{logger: logger, listings: listings, placements: placements}
}

// Listing 解析一条赛事列表行，返回记录与命中的策略名
func (e *Extractor) Listing(row *goquery.Selection) (*model.ScrapedTournament, string, bool) {
	for _, st := range e.listings {
		if rec, ok := st.Try(row); ok {
			return rec, st.Name, true
		}
	}
	e.logger.WithField("html", snippet(row)).Warn("赛事行不匹配任何解析策略，跳过")
	return nil, "", false
}

// Placement 解析一条名次行，返回记录与命中的策略名
func (e *Extractor) Placement(row *goquery.Selection) (*model.ScrapedPlacement, string, bool) {
	for _, st := range e.placements {
		if rec, ok := st.Try(row); ok {
			return rec, st.Name, true
		}
	}
	e.logger.WithField("html", snippet(row)).Warn("名次行不匹配任何解析策略，跳过")
	return nil, "", false
}

func snippet(sel *goquery.Selection) string {
	h, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	h = strings.Join(strings.Fields(h), " ")
	if len(h) > 160 {
		h = h[:160]
	}
	return h
}

var spaceRe = regexp.MustCompile(`\s+`)

// CleanText 清洗节点文本：合并空白并去首尾
func CleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// ParseCount 解析参赛人数等计数字段，缺失或非数字时优雅降级为0
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// 兼容 "123 players" 这类带单位的写法
	if idx := strings.IndexByte(s, ' '); idx > 0 {
		s = s[:idx]
	}
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ResolveDate 解析日期文本。文本缺失时回退为当天并标记低可信度；
// 文本存在但解析失败时返回错误（记录级硬失败）。
func ResolveDate(text string, now time.Time) (time.Time, string, error) {
	if strings.TrimSpace(text) == "" {
		return now.Truncate(24 * time.Hour), model.DateConfidenceLow, nil
	}
	t, err := ParseDate(text)
	if err != nil {
		return time.Time{}, "", err
	}
	return t, model.DateConfidenceParsed, nil
}
