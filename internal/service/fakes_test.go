package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/config"
	"github.com/dtsong/trainerlab-sub000/internal/model"
	"github.com/dtsong/trainerlab-sub000/internal/repository"
	"github.com/dtsong/trainerlab-sub000/internal/source"

	"github.com/sirupsen/logrus"
)

// fakeTournamentRepo 内存版赛事仓储，返回副本以模拟真实仓储的读写隔离
type fakeTournamentRepo struct {
	nextID      uint64
	tournaments map[uint64]*model.Tournament
	placements  map[uint64][]*model.Placement
	createCalls int
	updateCalls int

	textLabel  []*model.Placement
	reresolved map[uint64]string // placementID→重解析后的卡组名
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{
		tournaments: make(map[uint64]*model.Tournament),
		placements:  make(map[uint64][]*model.Placement),
		reresolved:  make(map[uint64]string),
	}
}

func cloneTournament(t *model.Tournament) *model.Tournament {
	c := *t
	c.Placements = nil
	return &c
}

func (f *fakeTournamentRepo) FindBySourceURL(_ context.Context, sourceURL string) (*model.Tournament, error) {
	for _, t := range f.tournaments {
		if t.SourceURL == sourceURL {
			return cloneTournament(t), nil
		}
	}
	return nil, nil
}

func (f *fakeTournamentRepo) FindDedupCandidates(_ context.Context, from, to time.Time) ([]*model.Tournament, error) {
	var out []*model.Tournament
	for _, t := range f.tournaments {
		if !t.Date.Before(from) && !t.Date.After(to) {
			out = append(out, cloneTournament(t))
		}
	}
	return out, nil
}

func (f *fakeTournamentRepo) Create(_ context.Context, t *model.Tournament, placements []*model.Placement) error {
	f.createCalls++
	f.nextID++
	t.ID = f.nextID
	f.tournaments[t.ID] = cloneTournament(t)
	for _, p := range placements {
		p.TournamentID = t.ID
		f.placements[t.ID] = append(f.placements[t.ID], p)
	}
	return nil
}

func (f *fakeTournamentRepo) Update(_ context.Context, t *model.Tournament, placements []*model.Placement) error {
	f.updateCalls++
	f.tournaments[t.ID] = cloneTournament(t)
	if len(placements) > 0 && len(f.placements[t.ID]) == 0 {
		for _, p := range placements {
			p.TournamentID = t.ID
			f.placements[t.ID] = append(f.placements[t.ID], p)
		}
	}
	return nil
}

func (f *fakeTournamentRepo) ListForAggregation(_ context.Context, from, to time.Time, filter repository.AggregationFilter) ([]*model.Tournament, error) {
	var out []*model.Tournament
	for id, t := range f.tournaments {
		if t.Status != model.StatusCompleted || t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		if filter.Region != "" && filter.Region != model.RegionGlobal && t.Region != filter.Region {
			continue
		}
		if filter.Format != "" && t.Format != filter.Format {
			continue
		}
		if filter.BestOf > 0 && t.BestOf != filter.BestOf {
			continue
		}
		if filter.TournamentType != "" && t.TournamentType != filter.TournamentType {
			continue
		}
		c := cloneTournament(t)
		for _, p := range f.placements[id] {
			c.Placements = append(c.Placements, *p)
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeTournamentRepo) HasPlacements(_ context.Context, tournamentID uint64) (bool, error) {
	return len(f.placements[tournamentID]) > 0, nil
}

func (f *fakeTournamentRepo) ListTextLabelPlacements(_ context.Context, _ int) ([]*model.Placement, error) {
	return f.textLabel, nil
}

func (f *fakeTournamentRepo) UpdatePlacementArchetype(_ context.Context, placementID uint64, archetype, _ string) error {
	f.reresolved[placementID] = archetype
	return nil
}

// fakeFingerprintRepo 内存版指纹映射表仓储
type fakeFingerprintRepo struct {
	fingerprints []*model.ArchetypeFingerprint
	err          error
}

func (f *fakeFingerprintRepo) ListAll(_ context.Context) ([]*model.ArchetypeFingerprint, error) {
	return f.fingerprints, f.err
}

// fakeSnapshotRepo 内存版快照仓储，按维度键存取
type fakeSnapshotRepo struct {
	snapshots map[string]*model.MetaSnapshot
	upserts   int
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{snapshots: make(map[string]*model.MetaSnapshot)}
}

func snapKey(date time.Time, region, format string, bestOf int, ttype string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", date.Format("2006-01-02"), region, format, bestOf, ttype)
}

func (f *fakeSnapshotRepo) Upsert(_ context.Context, s *model.MetaSnapshot) error {
	f.upserts++
	c := *s
	f.snapshots[snapKey(s.SnapshotDate, s.Region, s.Format, s.BestOf, s.TournamentType)] = &c
	return nil
}

func (f *fakeSnapshotRepo) GetByDimensions(_ context.Context, date time.Time, region, format string, bestOf int, tournamentType string) (*model.MetaSnapshot, error) {
	s, ok := f.snapshots[snapKey(date, region, format, bestOf, tournamentType)]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

// stubAdapter 仅做状态归一化的来源桩（抓取路径不在服务层测试范围）
type stubAdapter struct {
	name  string
	vocab map[string]string
}

func (a stubAdapter) GetName() string { return a.name }

func (a stubAdapter) FetchTournaments(context.Context) ([]*model.ScrapedTournament, error) {
	return nil, nil
}

func (a stubAdapter) NormalizeStatus(raw string) string {
	return source.NormalizeStatusWith(a.vocab, raw)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
