package service

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/config"
	"github.com/dtsong/trainerlab-sub000/internal/model"
	"github.com/dtsong/trainerlab-sub000/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// 卡组分级
const (
	TierS     = "S"
	TierA     = "A"
	TierB     = "B"
	TierC     = "C"
	TierRogue = "Rogue"
)

// AggregateService 元游戏聚合器：对名次窗口计算占比/卡片使用率/多样性/分级/
// 区域分歧/趋势，按维度键整体upsert快照。趋势与分歧对比读取已落库的历史快照。
type AggregateService struct {
	repo     repository.TournamentRepository
	snapRepo repository.SnapshotRepository
	cfg      *config.Config
	logger   *logrus.Logger
}

// AggregateOptions 聚合入参。维度过滤为空时使用默认维度。
type AggregateOptions struct {
	DryRun          bool
	Date            time.Time // 快照日期，零值=今天
	LookbackDays    int       // 名次窗口长度（天），默认7
	Regions         []string  // 区域列表，空=仅global
	Formats         []string  // 赛制列表，空=仅standard
	BestOfs         []int     // 局数列表，空=仅3
	TournamentTypes []string  // 赛事类型列表，空=不分类型
}

func NewAggregateService(repo repository.TournamentRepository, snapRepo repository.SnapshotRepository, cfg *config.Config, logger *logrus.Logger) *AggregateService {
	return &AggregateService{repo: repo, snapRepo: snapRepo, cfg: cfg, logger: logger}
}

// Run 对每个维度组合计算并upsert一张快照。总是返回结构化汇总。
func (s *AggregateService) Run(ctx context.Context, opts AggregateOptions) *AggregateResult {
	result := &AggregateResult{DryRun: opts.DryRun}

	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}
	date = date.Truncate(24 * time.Hour)
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}

	regions := opts.Regions
	if len(regions) == 0 {
		regions = []string{model.RegionGlobal}
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{"standard"}
	}
	bestOfs := opts.BestOfs
	if len(bestOfs) == 0 {
		bestOfs = []int{3}
	}
	types := opts.TournamentTypes
	if len(types) == 0 {
		types = []string{""}
	}

	// 每张快照是独立事务单元：单个维度失败只记录错误，继续下一个维度
	for _, region := range regions {
		for _, format := range formats {
			for _, bestOf := range bestOfs {
				for _, ttype := range types {
					s.computeOne(ctx, date, lookback, region, format, bestOf, ttype, result, opts.DryRun)
				}
			}
		}
	}

	s.logger.Infof("聚合完成：计算%d 落库%d 脏条目%d 错误%d",
		result.Computed, result.Saved, result.DataQualitySkipped, len(result.Errors))
	return result.finish()
}

func (s *AggregateService) computeOne(ctx context.Context, date time.Time, lookback int, region, format string, bestOf int, ttype string, result *AggregateResult, dryRun bool) {
	from := date.AddDate(0, 0, -lookback)
	filter := repository.AggregationFilter{Region: region, Format: format, BestOf: bestOf, TournamentType: ttype}
	tournaments, err := s.repo.ListForAggregation(ctx, from, date, filter)
	if err != nil {
		result.addError("聚合取数失败(%s/%s/bo%d): %v", region, format, bestOf, err)
		return
	}

	shares, sampleSize := s.computeShares(tournaments)
	snapshot := &model.MetaSnapshot{
		SnapshotDate:        date,
		Region:              region,
		Format:              format,
		BestOf:              bestOf,
		TournamentType:      ttype,
		ArchetypeShares:     mustJSON(shares),
		CardUsage:           mustJSON(s.computeCardUsage(tournaments, result)),
		DiversityIndex:      diversityIndex(shares),
		TierAssignments:     mustJSON(s.assignTiers(shares)),
		SampleSize:          sampleSize,
		TournamentsIncluded: len(tournaments),
	}

	// 趋势：与7天前同维度快照比较
	if trends := s.computeTrends(ctx, date, region, format, bestOf, ttype, shares, result); trends != nil {
		snapshot.Trends = mustJSON(trends)
	}

	// 区域分歧：区域单局快照对比同日期/赛制的全局Bo3快照
	if region != model.RegionGlobal && bestOf == 1 {
		if signals := s.computeDivergence(ctx, date, region, format, ttype, shares, result); signals != nil {
			snapshot.Divergence = mustJSON(signals)
		}
	}

	// 零赛事窗口也落一张显式空快照，让下游能区分"还没数据"与"从未计算"
	result.Computed++
	if dryRun {
		// dry-run计数与真实运行完全一致，仅省略落库动作
		result.Saved++
		return
	}
	if err := s.snapRepo.Upsert(ctx, snapshot); err != nil {
		result.addError("快照落库失败(%s/%s/bo%d): %v", region, format, bestOf, err)
		return
	}
	result.Saved++
}

// computeShares 计算卡组占比。出现赛事数不足min_tournaments的卡组被整体剔除
// （分母同步缩减），防止单场赛事支配快照。返回占比（3位小数）与纳入的名次数。
func (s *AggregateService) computeShares(tournaments []*model.Tournament) (map[string]float64, int) {
	counts := make(map[string]int)
	eventSets := make(map[string]map[uint64]struct{})
	for _, t := range tournaments {
		for i := range t.Placements {
			p := &t.Placements[i]
			counts[p.Archetype]++
			if eventSets[p.Archetype] == nil {
				eventSets[p.Archetype] = make(map[uint64]struct{})
			}
			eventSets[p.Archetype][t.ID] = struct{}{}
		}
	}

	minT := s.cfg.Aggregation.MinTournaments
	total := 0
	for name, n := range counts {
		if len(eventSets[name]) >= minT {
			total += n
		}
	}

	shares := make(map[string]float64)
	if total == 0 {
		return shares, 0
	}
	for name, n := range counts {
		if len(eventSets[name]) < minT {
			continue
		}
		shares[name] = round3(float64(n) / float64(total))
	}
	return shares, total
}

// computeCardUsage 卡片使用统计：inclusion_rate=含此卡的卡组数/卡组总数，
// avg_count=含此卡的卡组中的平均张数。脏条目（缺card_id/非正数量/非对象）
// 跳过并计入数据质量诊断，不会让计算崩溃。
func (s *AggregateService) computeCardUsage(tournaments []*model.Tournament, result *AggregateResult) map[string]model.CardUsageEntry {
	usage := make(map[string]model.CardUsageEntry)
	type agg struct {
		decks int
		total int
	}
	perCard := make(map[string]*agg)
	totalDecks := 0

	for _, t := range tournaments {
		for i := range t.Placements {
			raw := t.Placements[i].Decklist
			if len(raw) == 0 {
				continue
			}
			var entries []json.RawMessage
			if err := json.Unmarshal(raw, &entries); err != nil {
				result.DataQualitySkipped++
				continue
			}
			totalDecks++
			seenInDeck := make(map[string]bool)
			for _, e := range entries {
				var card model.DecklistCard
				if err := json.Unmarshal(e, &card); err != nil || card.CardID == "" || card.Count <= 0 {
					result.DataQualitySkipped++
					continue
				}
				a := perCard[card.CardID]
				if a == nil {
					a = &agg{}
					perCard[card.CardID] = a
				}
				if !seenInDeck[card.CardID] {
					a.decks++
					seenInDeck[card.CardID] = true
				}
				a.total += card.Count
			}
		}
	}

	if totalDecks == 0 {
		return usage
	}
	for id, a := range perCard {
		usage[id] = model.CardUsageEntry{
			InclusionRate: round3(float64(a.decks) / float64(totalDecks)),
			AvgCount:      round3(float64(a.total) / float64(a.decks)),
		}
	}
	return usage
}

// assignTiers 按严格大于的门槛分级，门槛有序不重叠：S>A>B>C>Rogue
func (s *AggregateService) assignTiers(shares map[string]float64) map[string]string {
	tiers := make(map[string]string, len(shares))
	a := s.cfg.Aggregation
	for name, share := range shares {
		switch {
		case share > a.TierS:
			tiers[name] = TierS
		case share > a.TierA:
			tiers[name] = TierA
		case share > a.TierB:
			tiers[name] = TierB
		case share > a.TierC:
			tiers[name] = TierC
		default:
			tiers[name] = TierRogue
		}
	}
	return tiers
}

// computeTrends 与恰好7天前同维度快照比较，遍历当前与历史卡组的并集：
// 历史有今无的卡组记为占比归零的下行。历史快照不存在返回nil（新维度无趋势）。
func (s *AggregateService) computeTrends(ctx context.Context, date time.Time, region, format string, bestOf int, ttype string, shares map[string]float64, result *AggregateResult) map[string]model.TrendEntry {
	prev, err := s.snapRepo.GetByDimensions(ctx, date.AddDate(0, 0, -7), region, format, bestOf, ttype)
	if err != nil {
		result.addError("读取历史快照失败(%s/%s/bo%d): %v", region, format, bestOf, err)
		return nil
	}
	if prev == nil {
		return nil
	}
	var prevShares map[string]float64
	if err := json.Unmarshal(prev.ArchetypeShares, &prevShares); err != nil {
		result.addError("解析历史快照失败(id=%d): %v", prev.ID, err)
		return nil
	}

	band := s.cfg.Aggregation.TrendStableBand
	trends := make(map[string]model.TrendEntry, len(shares)+len(prevShares))
	for name, cur := range shares {
		prevShare, existed := prevShares[name]
		delta := cur - prevShare
		direction := "stable"
		switch {
		case math.Abs(delta) < band:
			direction = "stable"
		case delta > 0:
			direction = "up"
		default:
			direction = "down"
		}
		entry := model.TrendEntry{Direction: direction, Delta: round4(delta)}
		if existed {
			v := prevShare
			entry.PreviousShare = &v
		}
		trends[name] = entry
	}
	// 上期在榜、本期消失的卡组：占比归零，趋势为下行
	for name, prevShare := range prevShares {
		if _, ok := shares[name]; ok {
			continue
		}
		direction := "down"
		if prevShare < band {
			direction = "stable"
		}
		v := prevShare
		trends[name] = model.TrendEntry{Direction: direction, Delta: round4(-prevShare), PreviousShare: &v}
	}
	return trends
}

// computeDivergence 区域对全局的占比分歧。全局Bo3快照缺失时返回nil——
// 显式"无信号"，不做半边比较。
func (s *AggregateService) computeDivergence(ctx context.Context, date time.Time, region, format, ttype string, shares map[string]float64, result *AggregateResult) []model.DivergenceSignal {
	global, err := s.snapRepo.GetByDimensions(ctx, date, model.RegionGlobal, format, 3, ttype)
	if err != nil {
		result.addError("读取全局快照失败(%s): %v", format, err)
		return nil
	}
	if global == nil || len(shares) == 0 {
		return nil
	}
	var globalShares map[string]float64
	if err := json.Unmarshal(global.ArchetypeShares, &globalShares); err != nil {
		result.addError("解析全局快照失败(id=%d): %v", global.ID, err)
		return nil
	}
	if len(globalShares) == 0 {
		return nil
	}

	union := make(map[string]struct{}, len(shares)+len(globalShares))
	for name := range shares {
		union[name] = struct{}{}
	}
	for name := range globalShares {
		union[name] = struct{}{}
	}

	threshold := s.cfg.Aggregation.DivergenceThreshold
	var signals []model.DivergenceSignal
	for name := range union {
		diff := shares[name] - globalShares[name]
		if math.Abs(diff) > threshold {
			signals = append(signals, model.DivergenceSignal{
				Archetype:   name,
				RegionShare: shares[name],
				GlobalShare: globalShares[name],
				Diff:        round4(diff),
			})
		}
	}
	sort.Slice(signals, func(i, j int) bool {
		return math.Abs(signals[i].Diff) > math.Abs(signals[j].Diff)
	})
	return signals
}

// diversityIndex Simpson多样性指数：1 − Σ share²
func diversityIndex(shares map[string]float64) float64 {
	sum := 0.0
	for _, share := range shares {
		sum += share * share
	}
	if len(shares) == 0 {
		return 0
	}
	return round4(1 - sum)
}

func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}") // 兜底返回空 JSON
	}
	return datatypes.JSON(raw)
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
