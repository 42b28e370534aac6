package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/archetype"
	"github.com/dtsong/trainerlab-sub000/internal/config"
	"github.com/dtsong/trainerlab-sub000/internal/model"
	"github.com/dtsong/trainerlab-sub000/internal/repository"
	"github.com/dtsong/trainerlab-sub000/internal/source"
	"github.com/dtsong/trainerlab-sub000/internal/source/limitless"
	"github.com/dtsong/trainerlab-sub000/internal/source/rk9"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// IngestService 摄取流水线：抓取→解析→卡组归类→跨源去重入库。
// 单个来源失败不阻塞其他来源；单场赛事入库失败只记录错误，批次继续。
type IngestService struct {
	repo   repository.TournamentRepository
	fpRepo repository.FingerprintRepository
	cfg    *config.Config
	logger *logrus.Logger
	// 适配器工厂：新增来源仅需添加此处
	adapterFactory map[string]source.Factory
}

// IngestOptions 摄取入参
type IngestOptions struct {
	DryRun  bool     // 只抓取/解析/计数，不落库
	Sources []string // 为空则运行全部启用的来源
}

func NewIngestService(repo repository.TournamentRepository, fpRepo repository.FingerprintRepository, cfg *config.Config, logger *logrus.Logger) *IngestService {
	return &IngestService{
		repo:   repo,
		fpRepo: fpRepo,
		cfg:    cfg,
		logger: logger,
		adapterFactory: map[string]source.Factory{
			"limitless": limitless.NewAdapter,
			"rk9":       rk9.NewAdapter,
		},
	}
}

// sourceBatch 单个来源的抓取结果（fan-in汇合用）
type sourceBatch struct {
	name        string
	adapter     source.SourceAdapter
	tournaments []*model.ScrapedTournament
	err         error
}

// Run 执行一次摄取。总是返回结构化汇总，错误收集在Errors里。
func (s *IngestService) Run(ctx context.Context, opts IngestOptions) *IngestResult {
	result := &IngestResult{DryRun: opts.DryRun}

	// 1. 加载指纹映射表（加载不了属于顶层基础设施失败，整次运行中止）
	fingerprints, err := s.fpRepo.ListAll(ctx)
	if err != nil {
		result.addError("加载指纹映射表失败: %v", err)
		return result.finish()
	}
	resolver := archetype.NewResolver(s.logger, fingerprints)

	// 2. 各来源并发抓取（fan-out/fan-in，失败按来源隔离）
	batches := s.fetchAll(ctx, opts.Sources)

	// 3. 逐来源逐赛事upsert（单条失败不中断批次）
	for _, b := range batches {
		if b.err != nil {
			result.addError("来源%s抓取失败: %v", b.name, b.err)
			continue
		}
		result.Fetched += len(b.tournaments)
		for _, st := range b.tournaments {
			s.upsertOne(ctx, b.adapter, resolver, st, result, opts.DryRun)
		}
	}

	// 4. 映射表补齐覆盖后的卡组归类重解析
	s.reresolvePlacements(ctx, resolver, result, opts.DryRun)

	// 5. 覆盖缺口诊断（Unknown/Rogue已被排除）
	if uncovered := resolver.Uncovered(); len(uncovered) > 0 {
		s.logger.WithField("labels", uncovered).Warn("指纹映射表未覆盖的卡组标签")
	}

	s.logger.Infof("摄取完成：抓取%d 新建%d 更新%d 合并%d 跳过%d 错误%d",
		result.Fetched, result.Created, result.Updated, result.Deduped, result.Skipped, len(result.Errors))
	return result.finish()
}

// fetchAll 并发抓取全部选中来源
func (s *IngestService) fetchAll(ctx context.Context, only []string) []*sourceBatch {
	selected := make(map[string]bool, len(only))
	for _, name := range only {
		selected[name] = true
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		batches []*sourceBatch
	)
	for name, srcCfg := range s.cfg.Sources {
		if !srcCfg.IsEnabled {
			continue
		}
		if len(selected) > 0 && !selected[name] {
			continue
		}
		factory, ok := s.adapterFactory[name]
		if !ok {
			s.logger.WithField("source", name).Warn("未支持的来源，已跳过")
			continue
		}
		cfg := srcCfg
		adapter := factory(&cfg, s.logger)

		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			tournaments, err := adapter.FetchTournaments(ctx)
			mu.Lock()
			batches = append(batches, &sourceBatch{name: name, adapter: adapter, tournaments: tournaments, err: err})
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return batches
}

// upsertOne 单场赛事的upsert：
// 1) 按来源URL精确匹配；2) 无匹配则按规范身份（名称+城市+日期窗口）找跨源重复，
// 恰好一条才合并，零条或多条保守按新建处理；3) 仍无则新建。
func (s *IngestService) upsertOne(ctx context.Context, adapter source.SourceAdapter, resolver *archetype.Resolver, st *model.ScrapedTournament, result *IngestResult, dryRun bool) {
	if st.SourceURL == "" {
		s.logger.WithField("name", st.Name).Warn("赛事缺少来源URL，跳过")
		result.Skipped++
		return
	}
	canonicalStatus := adapter.NormalizeStatus(st.RawStatus)

	existing, err := s.repo.FindBySourceURL(ctx, st.SourceURL)
	if err != nil {
		result.addError("查询赛事失败(%s): %v", st.SourceURL, err)
		return
	}

	if existing == nil {
		match, err := s.findCrossSourceMatch(ctx, st)
		if err != nil {
			result.addError("去重候选查询失败(%s): %v", st.Name, err)
			return
		}
		if match != nil {
			s.mergeTournament(ctx, match, st, canonicalStatus, resolver, result, dryRun)
			return
		}
		s.insertTournament(ctx, st, canonicalStatus, resolver, result, dryRun)
		return
	}

	s.updateTournament(ctx, existing, st, canonicalStatus, resolver, result, dryRun)
}

// findCrossSourceMatch 规范身份匹配：规范化名称+城市相同且日期落在容差窗口内，
// 且候选不是本来源单独贡献的记录。恰好一条才算命中；多条属于歧义冲突，
// 保守当作无匹配（宁可新建不可错并）。
func (s *IngestService) findCrossSourceMatch(ctx context.Context, st *model.ScrapedTournament) (*model.Tournament, error) {
	window := time.Duration(s.cfg.Dedup.DateWindowDays) * 24 * time.Hour
	candidates, err := s.repo.FindDedupCandidates(ctx, st.Date.Add(-window), st.Date.Add(window))
	if err != nil {
		return nil, err
	}

	nameKey := normalizeIdentity(st.Name)
	cityKey := normalizeIdentity(st.City)
	var matches []*model.Tournament
	for _, cand := range candidates {
		if onlySource(cand.Source, st.Source) {
			continue // 同来源的两场不同赛事不允许互并
		}
		if normalizeIdentity(cand.Name) == nameKey && normalizeIdentity(cand.City) == cityKey {
			matches = append(matches, cand)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		s.logger.WithFields(logrus.Fields{"name": st.Name, "matches": len(matches)}).
			Warn("跨源身份匹配存在歧义，保守按新建处理")
	}
	return nil, nil
}

// mergeTournament 跨源合并：并入来源归属、补齐空缺可选字段、按规则推进状态
func (s *IngestService) mergeTournament(ctx context.Context, existing *model.Tournament, st *model.ScrapedTournament, canonicalStatus string, resolver *archetype.Resolver, result *IngestResult, dryRun bool) {
	changed := unionSource(existing, st.Source)
	if fillEmptyFields(existing, st) {
		changed = true
	}
	changed = s.advanceStatus(existing, canonicalStatus) || changed

	placements, placementsChanged := s.placementsForUpdate(ctx, existing, st, resolver, result)
	changed = changed || placementsChanged

	if !changed {
		result.Skipped++
		return
	}
	if dryRun {
		result.Deduped++
		return
	}
	if err := s.repo.Update(ctx, existing, placements); err != nil {
		result.addError("合并赛事失败(%s): %v", existing.Name, err)
		return
	}
	result.Deduped++
}

// updateTournament 同来源再次同步：只补空缺字段与前向状态，幂等时计入skipped
func (s *IngestService) updateTournament(ctx context.Context, existing *model.Tournament, st *model.ScrapedTournament, canonicalStatus string, resolver *archetype.Resolver, result *IngestResult, dryRun bool) {
	changed := fillEmptyFields(existing, st)
	changed = s.advanceStatus(existing, canonicalStatus) || changed

	placements, placementsChanged := s.placementsForUpdate(ctx, existing, st, resolver, result)
	changed = changed || placementsChanged

	if !changed {
		result.Skipped++
		return
	}
	if dryRun {
		result.Updated++
		return
	}
	if err := s.repo.Update(ctx, existing, placements); err != nil {
		result.addError("更新赛事失败(%s): %v", existing.Name, err)
		return
	}
	result.Updated++
}

func (s *IngestService) insertTournament(ctx context.Context, st *model.ScrapedTournament, canonicalStatus string, resolver *archetype.Resolver, result *IngestResult, dryRun bool) {
	t := &model.Tournament{
		Name:            st.Name,
		Date:            st.Date,
		Region:          st.Region,
		Country:         st.Country,
		City:            st.City,
		Venue:           st.Venue,
		Format:          st.Format,
		BestOf:          st.BestOf,
		Tier:            st.Tier,
		TournamentType:  st.TournamentType,
		Status:          canonicalStatus,
		Source:          st.Source,
		SourceURL:       st.SourceURL,
		RegistrationURL: st.RegistrationURL,
		PlayerCount:     st.PlayerCount,
	}
	placements := s.buildPlacements(resolver, st)

	if dryRun {
		result.Created++
		return
	}
	if err := s.repo.Create(ctx, t, placements); err != nil {
		result.addError("新建赛事失败(%s): %v", st.Name, err)
		return
	}
	result.Created++
}

// advanceStatus 仅允许前向推进；同状态或回退请求均不改动（记录整体无变化时计入skipped）
func (s *IngestService) advanceStatus(existing *model.Tournament, canonicalStatus string) bool {
	if canonicalStatus == existing.Status {
		return false
	}
	if !model.CanTransition(existing.Status, canonicalStatus) {
		s.logger.WithFields(logrus.Fields{
			"tournament": existing.Name, "from": existing.Status, "to": canonicalStatus,
		}).Debug("拒绝状态回退请求")
		return false
	}
	existing.Status = canonicalStatus
	return true
}

// placementsForUpdate 名次入库后不可变：仅当该赛事尚无名次且本次抓到名次时返回待写入名次
func (s *IngestService) placementsForUpdate(ctx context.Context, existing *model.Tournament, st *model.ScrapedTournament, resolver *archetype.Resolver, result *IngestResult) ([]*model.Placement, bool) {
	if len(st.Placements) == 0 {
		return nil, false
	}
	has, err := s.repo.HasPlacements(ctx, existing.ID)
	if err != nil {
		result.addError("查询已有名次失败(%s): %v", existing.Name, err)
		return nil, false
	}
	if has {
		return nil, false
	}
	placements := s.buildPlacements(resolver, st)
	return placements, len(placements) > 0
}

// buildPlacements 中间名次记录→规范名次（含卡组归类），名次非法或重复的行跳过
func (s *IngestService) buildPlacements(resolver *archetype.Resolver, st *model.ScrapedTournament) []*model.Placement {
	seen := make(map[int]bool, len(st.Placements))
	placements := make([]*model.Placement, 0, len(st.Placements))
	for _, sp := range st.Placements {
		if sp.Rank <= 0 || seen[sp.Rank] {
			s.logger.WithFields(logrus.Fields{"tournament": st.Name, "rank": sp.Rank}).Warn("名次非法或重复，跳过")
			continue
		}
		seen[sp.Rank] = true

		name, method := resolver.Resolve(sp.Fingerprints, sp.RawLabel)
		p := &model.Placement{
			Rank:             sp.Rank,
			Player:           sp.Player,
			Country:          sp.Country,
			Archetype:        name,
			ResolutionMethod: method,
			FingerprintKey:   archetype.CanonicalKey(sp.Fingerprints),
		}
		if len(sp.Decklist) > 0 {
			raw, err := json.Marshal(sp.Decklist)
			if err != nil {
				s.logger.WithError(err).Warn("序列化卡组明细失败")
			} else {
				p.Decklist = datatypes.JSON(raw)
			}
		}
		placements = append(placements, p)
	}
	return placements
}

// reresolvePlacements 指纹映射表离线补齐覆盖后，把此前靠文本兜底的名次重新归类
func (s *IngestService) reresolvePlacements(ctx context.Context, resolver *archetype.Resolver, result *IngestResult, dryRun bool) {
	placements, err := s.repo.ListTextLabelPlacements(ctx, 1000)
	if err != nil {
		result.addError("拉取待重解析名次失败: %v", err)
		return
	}
	for _, p := range placements {
		name, method := resolver.Resolve(strings.Split(p.FingerprintKey, "+"), p.Archetype)
		if method == model.MethodTextLabel {
			continue // 映射表仍未覆盖
		}
		if dryRun {
			result.Reresolved++
			continue
		}
		if err := s.repo.UpdatePlacementArchetype(ctx, p.ID, name, method); err != nil {
			result.addError("重解析名次失败(id=%d): %v", p.ID, err)
			continue
		}
		result.Reresolved++
	}
}

var identityRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// normalizeIdentity 规范身份键：小写、去符号、合并空白（保留CJK等Unicode字母）
func normalizeIdentity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = identityRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// onlySource 来源归属是否仅包含指定来源（仅此来源贡献过的记录不参与跨源合并）
func onlySource(sourceList, name string) bool {
	for _, tag := range strings.Split(sourceList, ",") {
		if strings.TrimSpace(tag) != name {
			return false
		}
	}
	return true
}

// unionSource 并入来源标签，已存在则不变
func unionSource(t *model.Tournament, name string) bool {
	for _, tag := range strings.Split(t.Source, ",") {
		if strings.TrimSpace(tag) == name {
			return false
		}
	}
	t.Source = t.Source + "," + name
	return true
}

// fillEmptyFields 只补齐此前为空的可选字段，从不覆盖已有值
func fillEmptyFields(t *model.Tournament, st *model.ScrapedTournament) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&t.Venue, st.Venue)
	fill(&t.Tier, st.Tier)
	fill(&t.RegistrationURL, st.RegistrationURL)
	fill(&t.Region, st.Region)
	fill(&t.Country, st.Country)
	fill(&t.City, st.City)
	fill(&t.Format, st.Format)
	fill(&t.TournamentType, st.TournamentType)
	if t.PlayerCount == 0 && st.PlayerCount > 0 {
		t.PlayerCount = st.PlayerCount
		changed = true
	}
	return changed
}
