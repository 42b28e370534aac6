package limitless

import (
	"strings"
	"testing"

	"github.com/dtsong/trainerlab-sub000/internal/archetype"
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
		BaseURL:            "https://play.example.com",
		RateLimitPerMinute: 30,
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

const standingsFixture = `
<table class="standings"><tbody>
  <tr>
    <td class="rank">1</td>
    <td class="player">Aoi Tanaka<span class="flag" title="JP"></span></td>
    <td class="deck">
      <img class="sprite" src="/sprites/charizard.png">
      <img class="sprite" src="/sprites/pidgeot.png">
      <a>Charizard</a>
    </td>
  </tr>
  <tr>
    <td class="rank">2</td>
    <td class="player">Max Weber<span class="flag" title="DE"></span></td>
    <td class="deck"><img class="sprite" src="/sprites/gardevoir.png"><a>Gardevoir</a></td>
  </tr>
  <tr>
    <td class="rank">3</td>
    <td class="player">Lena Fischer<span class="flag" title="DE"></span></td>
    <td class="deck"><img class="sprite" src="/sprites/charizard.png"><img class="sprite" src="/sprites/pidgeot.png"><a>Charizard</a></td>
  </tr>
  <tr>
    <td class="rank">4</td>
    <td class="player">Sam Ortiz</td>
    <td class="deck">Rogue</td>
  </tr>
</tbody></table>`

// 名次页fixture：3行带角色图走精确指纹命中，1行纯文本"Rogue"走文本兜底，
// 且Rogue不计入覆盖缺口诊断。
func TestStandingsFixtureResolution(t *testing.T) {
	a := testAdapter(t)
	resolver := archetype.NewResolver(a.logger, []*model.ArchetypeFingerprint{
		{FingerprintKey: "charizard+pidgeot", ArchetypeName: "Charizard ex"},
		{FingerprintKey: "gardevoir", ArchetypeName: "Gardevoir ex"},
	})

	var placements []*model.ScrapedPlacement
	rows(t, standingsFixture, "table.standings tbody tr").Each(func(_ int, row *goquery.Selection) {
		rec, _, ok := a.extractor.Placement(row)
		if !ok {
			t.Errorf("名次行解析失败: %s", row.Text())
			return
		}
		placements = append(placements, rec)
	})
	if len(placements) != 4 {
		t.Fatalf("名次行数 = %d，期望4", len(placements))
	}

	methods := make(map[string]int)
	for _, p := range placements {
		name, method := resolver.Resolve(p.Fingerprints, p.RawLabel)
		methods[method]++
		if p.Rank <= 3 && name != "Charizard ex" && name != "Gardevoir ex" {
			t.Errorf("第%d名归类为%q", p.Rank, name)
		}
		if p.Rank == 4 && name != archetype.LabelRogue {
			t.Errorf("第4名应归为Rogue，实际%q", name)
		}
	}
	if methods[model.MethodSpriteLookup] != 3 || methods[model.MethodTextLabel] != 1 {
		t.Errorf("归类方式分布 = %v，期望sprite_lookup×3 + text_label×1", methods)
	}
	if uncovered := resolver.Uncovered(); len(uncovered) != 0 {
		t.Errorf("Rogue不应计入覆盖缺口: %v", uncovered)
	}
}

func TestStandingRowSpritesParsesDecklist(t *testing.T) {
	a := testAdapter(t)
	html := `<table><tbody><tr>
		<td class="rank">5</td>
		<td class="player">Kai</td>
		<td class="deck"><img class="sprite" src="/sprites/gardevoir.png"></td>
		<td><div class="decklist">
			<span class="card" data-card-id="sv4-86" data-count="3"></span>
			<span class="card" data-card-id="" data-count="2"></span>
			<span class="card" data-card-id="sv1-25" data-count="0"></span>
		</div></td>
	</tr></tbody></table>`
	rec, strategy, ok := a.extractor.Placement(rows(t, html, "tr"))
	if !ok || strategy != "standing_row_sprites" {
		t.Fatalf("解析失败: strategy=%q ok=%v", strategy, ok)
	}
	// 缺id、非正数量的卡牌条目被丢弃
	if len(rec.Decklist) != 1 || rec.Decklist[0].CardID != "sv4-86" || rec.Decklist[0].Count != 3 {
		t.Errorf("Decklist = %+v", rec.Decklist)
	}
	if len(rec.Fingerprints) != 1 || rec.Fingerprints[0] != "gardevoir" {
		t.Errorf("Fingerprints = %v", rec.Fingerprints)
	}
}

func TestListingTableV2(t *testing.T) {
	a := testAdapter(t)
	html := `<table class="tournament-list"><tbody>
		<tr data-best-of="1">
			<td class="name"><a href="/tournament/abc123">Osaka Grassroots Cup</a></td>
			<td class="date">2026年2月1日</td>
			<td class="country">JP</td>
			<td class="city">Osaka</td>
			<td class="format">Standard</td>
			<td class="players">64 players</td>
			<td><span class="status">signups open</span></td>
			<td class="signup"><a href="/tournament/abc123/signup">signup</a></td>
		</tr>
	</tbody></table>`
	rec, strategy, ok := a.extractor.Listing(rows(t, html, "tbody tr"))
	if !ok || strategy != "listing_table_v2" {
		t.Fatalf("解析失败: strategy=%q ok=%v", strategy, ok)
	}
	if rec.Name != "Osaka Grassroots Cup" || rec.City != "Osaka" || rec.Country != "JP" {
		t.Errorf("字段解析错误: %+v", rec)
	}
	if rec.Date.Year() != 2026 || rec.Date.Month() != 2 || rec.Date.Day() != 1 {
		t.Errorf("Date = %v", rec.Date)
	}
	if rec.DateConfidence != model.DateConfidenceParsed {
		t.Errorf("DateConfidence = %q", rec.DateConfidence)
	}
	if rec.BestOf != 1 || rec.Format != "standard" || rec.PlayerCount != 64 {
		t.Errorf("BestOf/Format/PlayerCount = %d/%s/%d", rec.BestOf, rec.Format, rec.PlayerCount)
	}
	if a.NormalizeStatus(rec.RawStatus) != model.StatusRegistrationOpen {
		t.Errorf("NormalizeStatus(%q) = %q", rec.RawStatus, a.NormalizeStatus(rec.RawStatus))
	}
}

func TestListingRejectsUnparseableDate(t *testing.T) {
	a := testAdapter(t)
	html := `<table><tbody><tr>
		<td class="name"><a href="/tournament/x">Mystery Cup</a></td>
		<td class="date">sometime next month</td>
	</tr></tbody></table>`
	if _, _, ok := a.extractor.Listing(rows(t, html, "tr")); ok {
		t.Error("日期不可解析的赛事行应被整行拒绝")
	}
}

func TestListingCardV1Fallback(t *testing.T) {
	a := testAdapter(t)
	html := `<div class="tournament" data-url="/tournament/old1" data-format="Standard" data-best-of="3">
		<span class="tournament-name">Legacy League</span>
		<span class="tournament-date">January 15, 2026</span>
		<span class="tournament-status">finished</span>
		<span class="tournament-country">US</span>
	</div>`
	rec, strategy, ok := a.extractor.Listing(rows(t, html, "div.tournament"))
	if !ok || strategy != "listing_card_v1" {
		t.Fatalf("解析失败: strategy=%q ok=%v", strategy, ok)
	}
	if rec.Name != "Legacy League" || rec.SourceURL != "/tournament/old1" {
		t.Errorf("字段解析错误: %+v", rec)
	}
	if a.NormalizeStatus(rec.RawStatus) != model.StatusCompleted {
		t.Errorf("NormalizeStatus = %q", a.NormalizeStatus(rec.RawStatus))
	}
}

func TestSpriteFingerprint(t *testing.T) {
	cases := map[string]string{
		"/sprites/charizard.png":       "charizard",
		"https://cdn.x/raging-bolt.gif": "raging-bolt",
		"":                             "",
	}
	for in, want := range cases {
		if got := spriteFingerprint(in); got != want {
			t.Errorf("spriteFingerprint(%q) = %q，期望%q", in, got, want)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	a := testAdapter(t)
	if got := a.absoluteURL("/tournament/abc"); got != "https://play.example.com/tournament/abc" {
		t.Errorf("absoluteURL = %q", got)
	}
	if got := a.absoluteURL("https://other.example.com/x"); got != "https://other.example.com/x" {
		t.Errorf("绝对URL不应被改写: %q", got)
	}
}
