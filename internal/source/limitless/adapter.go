package limitless

import (
	"bytes"
	"context"
	"fmt"
	"path"
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

// Adapter 草根赛事站适配器（国际站，含日文镜像页）。
// 列表页与名次页都是HTML，布局有新旧两代，解析策略按新版优先级联。
type Adapter struct {
	cfg       *config.SourceConfig
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	logger    *logrus.Logger
}

// statusVocab 本站原始状态词汇→规范状态
var statusVocab = map[string]string{
	"upcoming":     model.StatusAnnounced,
	"signups open": model.StatusRegistrationOpen,
	"registration": model.StatusRegistrationOpen,
	"signups over": model.StatusRegistrationClosed,
	"ongoing":      model.StatusActive,
	"live":         model.StatusActive,
	"finished":     model.StatusCompleted,
	"concluded":    model.StatusCompleted,
}

// NewAdapter ========== 实现SourceAdapter接口 ==========
func NewAdapter(cfg *config.SourceConfig, logger *logrus.Logger) source.SourceAdapter {
	a := &Adapter{
		cfg:     cfg,
		fetcher: fetch.NewFetcher("limitless", cfg, logger),
		logger:  logger,
	}
	a.extractor = extract.NewExtractor(logger,
		[]extract.ListingStrategy{
			{Name: "listing_table_v2", Try: a.tryListingTableV2},
			{Name: "listing_card_v1", Try: a.tryListingCardV1},
		},
		[]extract.PlacementStrategy{
			{Name: "standing_row_sprites", Try: a.tryStandingRowSprites},
			{Name: "standing_row_text", Try: a.tryStandingRowText},
		},
	)
	return a
}

func (a *Adapter) GetName() string { return "limitless" }

func (a *Adapter) NormalizeStatus(raw string) string {
	return source.NormalizeStatusWith(statusVocab, raw)
}

// FetchTournaments 抓取列表页，再为已结束的赛事抓取名次页
func (a *Adapter) FetchTournaments(ctx context.Context) ([]*model.ScrapedTournament, error) {
	listURL := fmt.Sprintf("%s/tournaments?show=all", strings.TrimRight(a.cfg.BaseURL, "/"))
	body, err := a.fetcher.Fetch(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("抓取赛事列表失败: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析列表页失败: %w", err)
	}

	var tournaments []*model.ScrapedTournament
	doc.Find("table.tournament-list tbody tr, div.tournament-grid div.tournament").Each(func(_ int, row *goquery.Selection) {
		rec, strategy, ok := a.extractor.Listing(row)
		if !ok {
			return
		}
		rec.Source = a.GetName()
		rec.SourceURL = a.absoluteURL(rec.SourceURL)
		rec.RegistrationURL = a.absoluteURL(rec.RegistrationURL)
		if rec.Region == "" {
			rec.Region = source.RegionForCountry(rec.Country)
		}
		a.logger.WithFields(logrus.Fields{"strategy": strategy, "name": rec.Name}).Debug("解析到赛事行")
		tournaments = append(tournaments, rec)
	})

	// 已结束的赛事补抓名次页（单场失败只告警，不影响其他赛事）
	for _, t := range tournaments {
		if a.NormalizeStatus(t.RawStatus) != model.StatusCompleted || t.SourceURL == "" {
			continue
		}
		placements, err := a.fetchStandings(ctx, t.SourceURL)
		if err != nil {
			a.logger.WithError(err).WithField("tournament", t.Name).Warn("抓取名次页失败")
			continue
		}
		t.Placements = placements
	}

	return tournaments, nil
}

func (a *Adapter) fetchStandings(ctx context.Context, tournamentURL string) ([]*model.ScrapedPlacement, error) {
	body, err := a.fetcher.Fetch(ctx, tournamentURL+"/standings")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("解析名次页失败: %w", err)
	}
	var placements []*model.ScrapedPlacement
	doc.Find("table.standings tbody tr").Each(func(_ int, row *goquery.Selection) {
		rec, _, ok := a.extractor.Placement(row)
		if !ok {
			return
		}
		placements = append(placements, rec)
	})
	return placements, nil
}

// tryListingTableV2 新版表格布局：td.name a / td.date / td.country / td.players / span.status
func (a *Adapter) tryListingTableV2(row *goquery.Selection) (*model.ScrapedTournament, bool) {
	nameLink := row.Find("td.name a")
	if nameLink.Length() == 0 {
		return nil, false
	}
	href, _ := nameLink.Attr("href")
	dateText := extract.CleanText(row.Find("td.date").Text())
	date, confidence, err := extract.ResolveDate(dateText, time.Now())
	if err != nil {
		a.logger.WithField("date", dateText).Warn("日期不可解析，拒绝该赛事行")
		return nil, false
	}
	regURL, _ := row.Find("td.signup a").Attr("href")
	return &model.ScrapedTournament{
		Name:            extract.CleanText(nameLink.Text()),
		Date:            date,
		DateConfidence:  confidence,
		RawStatus:       extract.CleanText(row.Find("span.status").Text()),
		Country:         extract.CleanText(row.Find("td.country").Text()),
		City:            extract.CleanText(row.Find("td.city").Text()),
		Format:          strings.ToLower(extract.CleanText(row.Find("td.format").Text())),
		BestOf:          bestOf(row.AttrOr("data-best-of", "")),
		TournamentType:  "grassroots",
		PlayerCount:     extract.ParseCount(row.Find("td.players").Text()),
		SourceURL:       href,
		RegistrationURL: regURL,
	}, true
}

// tryListingCardV1 旧版卡片布局：div.tournament[data-url]，字段在嵌套span里
func (a *Adapter) tryListingCardV1(row *goquery.Selection) (*model.ScrapedTournament, bool) {
	href, ok := row.Attr("data-url")
	if !ok {
		return nil, false
	}
	name := extract.CleanText(row.Find("span.tournament-name").Text())
	if name == "" {
		return nil, false
	}
	dateText := extract.CleanText(row.Find("span.tournament-date").Text())
	date, confidence, err := extract.ResolveDate(dateText, time.Now())
	if err != nil {
		a.logger.WithField("date", dateText).Warn("日期不可解析，拒绝该赛事行")
		return nil, false
	}
	return &model.ScrapedTournament{
		Name:           name,
		Date:           date,
		DateConfidence: confidence,
		RawStatus:      extract.CleanText(row.Find("span.tournament-status").Text()),
		Country:        extract.CleanText(row.Find("span.tournament-country").Text()),
		City:           extract.CleanText(row.Find("span.tournament-city").Text()),
		Format:         strings.ToLower(row.AttrOr("data-format", "")),
		BestOf:         bestOf(row.AttrOr("data-best-of", "")),
		TournamentType: "grassroots",
		PlayerCount:    extract.ParseCount(row.Find("span.tournament-players").Text()),
		SourceURL:      href,
	}, true
}

// tryStandingRowSprites 带角色图的名次行：img.sprite的文件名即指纹
func (a *Adapter) tryStandingRowSprites(row *goquery.Selection) (*model.ScrapedPlacement, bool) {
	sprites := row.Find("td.deck img.sprite")
	if sprites.Length() == 0 {
		return nil, false
	}
	rank, err := strconv.Atoi(extract.CleanText(row.Find("td.rank").Text()))
	if err != nil || rank <= 0 {
		return nil, false
	}
	var fingerprints []string
	sprites.Each(func(_ int, img *goquery.Selection) {
		if fp := spriteFingerprint(img.AttrOr("src", "")); fp != "" {
			fingerprints = append(fingerprints, fp)
		}
	})
	return &model.ScrapedPlacement{
		Rank:         rank,
		Player:       extract.CleanText(row.Find("td.player").Text()),
		Country:      extract.CleanText(row.Find("td.player span.flag").AttrOr("title", "")),
		Fingerprints: fingerprints,
		RawLabel:     extract.CleanText(row.Find("td.deck a").Text()),
		Decklist:     parseDecklist(row),
	}, true
}

// tryStandingRowText 无角色图的名次行：只有文本卡组名
func (a *Adapter) tryStandingRowText(row *goquery.Selection) (*model.ScrapedPlacement, bool) {
	rank, err := strconv.Atoi(extract.CleanText(row.Find("td.rank").Text()))
	if err != nil || rank <= 0 {
		return nil, false
	}
	player := extract.CleanText(row.Find("td.player").Text())
	if player == "" {
		return nil, false
	}
	return &model.ScrapedPlacement{
		Rank:     rank,
		Player:   player,
		Country:  extract.CleanText(row.Find("td.player span.flag").AttrOr("title", "")),
		RawLabel: extract.CleanText(row.Find("td.deck").Text()),
		Decklist: parseDecklist(row),
	}, true
}

// parseDecklist 名次行内嵌的卡组明细（可缺失）
func parseDecklist(row *goquery.Selection) []model.DecklistCard {
	var cards []model.DecklistCard
	row.Find("div.decklist span.card").Each(func(_ int, card *goquery.Selection) {
		id := card.AttrOr("data-card-id", "")
		count, err := strconv.Atoi(card.AttrOr("data-count", ""))
		if id == "" || err != nil || count <= 0 {
			return
		}
		cards = append(cards, model.DecklistCard{CardID: id, Count: count})
	})
	return cards
}

// spriteFingerprint 角色图URL→指纹（文件名去扩展名）
func spriteFingerprint(src string) string {
	base := path.Base(src)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func (a *Adapter) absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/" + strings.TrimLeft(href, "/")
}

func bestOf(s string) int {
	if n, err := strconv.Atoi(s); err == nil && (n == 1 || n == 3) {
		return n
	}
	return 3
}
