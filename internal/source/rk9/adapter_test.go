package rk9

import (
	"strings"
	"testing"

	"github.com/dtsong/trainerlab-sub000/internal/config"
	"github.com/dtsong/trainerlab-sub000/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

func testAdapter(t *testing.T) *Adapter {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cfg := &config.SourceConfig{
		BaseURL:            "https://rk9.example.com",
		RateLimitPerMinute: 20,
		MaxConcurrent:      2,
		MaxRetries:         1,
		RetryBaseDelayMs:   100,
	}
	return NewAdapter(cfg, logger).(*Adapter)
}

func rows(t *testing.T, html, selector string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("解析fixture失败: %v", err)
	}
	return doc.Find(selector)
}

func TestEventTable(t *testing.T) {
	a := testAdapter(t)
	html := `<table id="events"><tbody><tr>
		<td class="event-name"><a href="/events/lille-regional">Lille Regional Championships</a></td>
		<td class="event-date">February 14, 2026</td>
		<td class="event-venue">Lille Grand Palais</td>
		<td class="event-city">Lille</td>
		<td class="event-country">FR</td>
		<td class="event-tier">Regional</td>
		<td class="event-players">1,204</td>
		<td class="event-status">registration open</td>
		<td class="register"><a href="/events/lille-regional/register">register</a></td>
	</tr></tbody></table>`
	rec, strategy, ok := a.extractor.Listing(rows(t, html, "tbody tr"))
	if !ok || strategy != "event_table" {
		t.Fatalf("解析失败: strategy=%q ok=%v", strategy, ok)
	}
	if rec.Name != "Lille Regional Championships" || rec.Venue != "Lille Grand Palais" {
		t.Errorf("字段解析错误: %+v", rec)
	}
	if rec.Date.Month() != 2 || rec.Date.Day() != 14 {
		t.Errorf("Date = %v", rec.Date)
	}
	if rec.Tier != "regional" || rec.TournamentType != "official" || rec.BestOf != 3 {
		t.Errorf("Tier/Type/BestOf = %s/%s/%d", rec.Tier, rec.TournamentType, rec.BestOf)
	}
	if rec.PlayerCount != 1204 {
		t.Errorf("PlayerCount = %d", rec.PlayerCount)
	}
	if a.NormalizeStatus(rec.RawStatus) != model.StatusRegistrationOpen {
		t.Errorf("NormalizeStatus = %q", a.NormalizeStatus(rec.RawStatus))
	}
}

func TestEventListItemFallback(t *testing.T) {
	a := testAdapter(t)
	html := `<ul class="event-list"><li class="event" data-href="/events/sp1">
		<div class="name">São Paulo Special Event</div>
		<div class="date">2026-03-07</div>
		<div class="city">São Paulo</div>
		<div class="country">BR</div>
		<div class="status">final</div>
	</li></ul>`
	rec, strategy, ok := a.extractor.Listing(rows(t, html, "li.event"))
	if !ok || strategy != "event_list_item" {
		t.Fatalf("解析失败: strategy=%q ok=%v", strategy, ok)
	}
	if rec.Name != "São Paulo Special Event" || rec.SourceURL != "/events/sp1" {
		t.Errorf("字段解析错误: %+v", rec)
	}
	if a.NormalizeStatus(rec.RawStatus) != model.StatusCompleted {
		t.Errorf("NormalizeStatus = %q", a.NormalizeStatus(rec.RawStatus))
	}
}

func TestRosterRow(t *testing.T) {
	a := testAdapter(t)
	html := `<table class="results"><tbody>
		<tr>
			<td class="standing">1</td>
			<td class="player-name">Marco Rossi</td>
			<td class="player-country">IT</td>
			<td class="deck-name">Dragapult ex</td>
		</tr>
		<tr>
			<td class="standing">DQ</td>
			<td class="player-name">Anon</td>
		</tr>
	</tbody></table>`
	var hits []*model.ScrapedPlacement
	rows(t, html, "tbody tr").Each(func(_ int, row *goquery.Selection) {
		if rec, _, ok := a.extractor.Placement(row); ok {
			hits = append(hits, rec)
		}
	})
	// 名次非数字的行被跳过
	if len(hits) != 1 {
		t.Fatalf("命中行数 = %d，期望1", len(hits))
	}
	if hits[0].Rank != 1 || hits[0].Player != "Marco Rossi" || hits[0].RawLabel != "Dragapult ex" {
		t.Errorf("名次行 = %+v", hits[0])
	}
	if len(hits[0].Fingerprints) != 0 {
		t.Errorf("本站无角色图，Fingerprints应为空: %v", hits[0].Fingerprints)
	}
}

func TestNormalizeStatusDefaultsToAnnounced(t *testing.T) {
	a := testAdapter(t)
	if got := a.NormalizeStatus("something new"); got != model.StatusAnnounced {
		t.Errorf("未知状态词应回退为announced，实际%q", got)
	}
}
