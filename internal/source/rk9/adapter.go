package rk9

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/config"
	"github.com/dtsong/trainerlab-sub000/internal/extract"
	"github.com/dtsong/trainerlab-sub000/internal/fetch"
	"github.com/dtsong/trainerlab-sub000/internal/model"
	"github.com/dtsong/trainerlab-sub000/internal/source"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Adapter 官方巡回赛站适配器。列表是分页表格，日期为英文月名写法，
// 名次页只有文本卡组名（无角色图、无卡组明细）。
type Adapter struct {
	cfg       *config.SourceConfig
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	logger    *logrus.Logger
}

// statusVocab 本站原始状态词汇→规范状态
var statusVocab = map[string]string{
	"announced":           model.StatusAnnounced,
	"registration open":   model.StatusRegistrationOpen,
	"registration closed": model.StatusRegistrationClosed,
	"check-in":            model.StatusRegistrationClosed,
	"in progress":         model.StatusActive,
	"underway":            model.StatusActive,
	"completed":           model.StatusCompleted,
	"final":               model.StatusCompleted,
}

// tierVocab 官方赛事级别词汇表
var tierVocab = map[string]string{
	"regional":      "regional",
	"international": "international",
	"special":       "special",
	"cup":           "cup",
	"challenge":     "challenge",
}

// NewAdapter ========== 实现SourceAdapter接口 ==========
func NewAdapter(cfg *config.SourceConfig, logger *logrus.Logger) source.SourceAdapter {
	a := &Adapter{
		cfg:     cfg,
		fetcher: fetch.NewFetcher("rk9", cfg, logger),
		logger:  logger,
	}
	a.extractor = extract.NewExtractor(logger,
		[]extract.ListingStrategy{
			{Name: "event_table", Try: a.tryEventTable},
			{Name: "event_list_item", Try: a.tryEventListItem},
		},
		[]extract.PlacementStrategy{
			{Name: "roster_row", Try: a.tryRosterRow},
		},
	)
	return a
}

func (a *Adapter) GetName() string { return "rk9" }

func (a *Adapter) NormalizeStatus(raw string) string {
	return source.NormalizeStatusWith(statusVocab, raw)
}

// FetchTournaments 抓取赛事表（最多翻3页），已结束的补抓名次页
func (a *Adapter) FetchTournaments(ctx context.Context) ([]*model.ScrapedTournament, error) {
	var tournaments []*model.ScrapedTournament
	for page := 1; page <= 3; page++ {
		pageURL := fmt.Sprintf("%s/events?page=%d", strings.TrimRight(a.cfg.BaseURL, "/"), page)
		body, err := a.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if fetch.IsNotFound(err) {
				break // 翻过最后一页
			}
			return tournaments, fmt.Errorf("抓取第%d页赛事表失败: %w", page, err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return tournaments, fmt.Errorf("解析第%d页失败: %w", page, err)
		}
		rows := doc.Find("table#events tbody tr, ul.event-list li.event")
		if rows.Length() == 0 {
			break
		}
		rows.Each(func(_ int, row *goquery.Selection) {
			rec, _, ok := a.extractor.Listing(row)
			if !ok {
				return
			}
			rec.Source = a.GetName()
			rec.SourceURL = a.absoluteURL(rec.SourceURL)
			rec.RegistrationURL = a.absoluteURL(rec.RegistrationURL)
			if rec.Region == "" {
				rec.Region = source.RegionForCountry(rec.Country)
			}
			tournaments = append(tournaments, rec)
		})
	}

	for _, t := range tournaments {
		if a.NormalizeStatus(t.RawStatus) != model.StatusCompleted || t.SourceURL == "" {
			continue
		}
		placements, err := a.fetchRoster(ctx, t.SourceURL)
		if err != nil {
			a.logger.WithError(err).WithField("tournament", t.Name).Warn("抓取名次页失败")
			continue
		}
		t.Placements = placements
	}

	return tournaments, nil
}

func (a *Adapter) fetchRoster(ctx context.Context, tournamentURL string) ([]*model.ScrapedPlacement, error) {
	body, err := a.fetcher.Fetch(ctx, tournamentURL+"/results")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析名次页失败: %w", err)
	}
	var placements []*model.ScrapedPlacement
	doc.Find("table.results tbody tr").Each(func(_ int, row *goquery.Selection) {
		rec, _, ok := a.extractor.Placement(row)
		if !ok {
			return
		}
		placements = append(placements, rec)
	})
	return placements, nil
}

// tryEventTable 表格布局：td内依次为名称链接/日期/场地/城市/状态
func (a *Adapter) tryEventTable(row *goquery.Selection) (*model.ScrapedTournament, bool) {
	link := row.Find("td.event-name a")
	if link.Length() == 0 {
		return nil, false
	}
	dateText := extract.CleanText(row.Find("td.event-date").Text())
	date, confidence, err := extract.ResolveDate(dateText, time.Now())
	if err != nil {
		a.logger.WithField("date", dateText).Warn("日期不可解析，拒绝该赛事行")
		return nil, false
	}
	href, _ := link.Attr("href")
	regURL, _ := row.Find("td.register a").Attr("href")
	return &model.ScrapedTournament{
		Name:            extract.CleanText(link.Text()),
		Date:            date,
		DateConfidence:  confidence,
		RawStatus:       extract.CleanText(row.Find("td.event-status").Text()),
		Country:         extract.CleanText(row.Find("td.event-country").Text()),
		City:            extract.CleanText(row.Find("td.event-city").Text()),
		Venue:           extract.CleanText(row.Find("td.event-venue").Text()),
		Format:          "standard",
		BestOf:          3,
		Tier:            tierVocab[strings.ToLower(extract.CleanText(row.Find("td.event-tier").Text()))],
		TournamentType:  "official",
		PlayerCount:     extract.ParseCount(row.Find("td.event-players").Text()),
		SourceURL:       href,
		RegistrationURL: regURL,
	}, true
}

// tryEventListItem 移动端列表布局：li.event[data-href]，字段在嵌套div里
func (a *Adapter) tryEventListItem(row *goquery.Selection) (*model.ScrapedTournament, bool) {
	href, ok := row.Attr("data-href")
	if !ok {
		return nil, false
	}
	name := extract.CleanText(row.Find("div.name").Text())
	if name == "" {
		return nil, false
	}
	dateText := extract.CleanText(row.Find("div.date").Text())
	date, confidence, err := extract.ResolveDate(dateText, time.Now())
	if err != nil {
		a.logger.WithField("date", dateText).Warn("日期不可解析，拒绝该赛事行")
		return nil, false
	}
	return &model.ScrapedTournament{
		Name:           name,
		Date:           date,
		DateConfidence: confidence,
		RawStatus:      extract.CleanText(row.Find("div.status").Text()),
		Country:        extract.CleanText(row.Find("div.country").Text()),
		City:           extract.CleanText(row.Find("div.city").Text()),
		Format:         "standard",
		BestOf:         3,
		TournamentType: "official",
		PlayerCount:    extract.ParseCount(row.Find("div.players").Text()),
		SourceURL:      href,
	}, true
}

// tryRosterRow 名次行：名次/选手/国家/卡组文本名
func (a *Adapter) tryRosterRow(row *goquery.Selection) (*model.ScrapedPlacement, bool) {
	rank, err := strconv.Atoi(extract.CleanText(row.Find("td.standing").Text()))
	if err != nil || rank <= 0 {
		return nil, false
	}
	player := extract.CleanText(row.Find("td.player-name").Text())
	if player == "" {
		return nil, false
	}
	return &model.ScrapedPlacement{
		Rank:     rank,
		Player:   player,
		Country:  extract.CleanText(row.Find("td.player-country").Text()),
		RawLabel: extract.CleanText(row.Find("td.deck-name").Text()),
	}, true
}

func (a *Adapter) absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/" + strings.TrimLeft(href, "/")
}
