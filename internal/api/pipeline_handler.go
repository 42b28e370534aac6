package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dtsong/trainerlab-sub000/internal/config"
	"github.com/dtsong/trainerlab-sub000/internal/extract"
	"github.com/dtsong/trainerlab-sub000/internal/metrics"
	"github.com/dtsong/trainerlab-sub000/internal/repository"
	"github.com/dtsong/trainerlab-sub000/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PipelineHandler 流水线入口（手动触发或外部调度器调用）
type PipelineHandler struct {
	ingestService    *service.IngestService
	aggregateService *service.AggregateService
	logger           *logrus.Logger
}

func NewPipelineHandler(db *gorm.DB, logger *logrus.Logger, cfg *config.Config) *PipelineHandler {
	repo := repository.NewTournamentRepository(db)
	fpRepo := repository.NewFingerprintRepository(db)
	snapRepo := repository.NewSnapshotRepository(db)
	return &PipelineHandler{
		ingestService:    service.NewIngestService(repo, fpRepo, cfg, logger),
		aggregateService: service.NewAggregateService(repo, snapRepo, cfg, logger),
		logger:           logger,
	}
}

// IngestHandler 触发一次摄取
// @Summary 抓取全部来源并入库
// @Param dry_run query bool false "只计算不落库"
// @Param sources query string false "来源列表，逗号分隔（默认全部启用的来源）"
// @Success 200 {object} service.IngestResult
// @Router /pipeline/ingest [post]
func (h *PipelineHandler) IngestHandler(c *gin.Context) {
	opts := service.IngestOptions{
		DryRun:  parseBool(c.Query("dry_run")),
		Sources: splitList(c.Query("sources")),
	}

	result := h.ingestService.Run(c.Request.Context(), opts)
	if !opts.DryRun {
		metrics.ObserveIngest(result.Success, result.Fetched, result.Created, result.Updated, result.Skipped, result.Deduped)
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
		h.logger.Errorf("摄取运行存在错误: %v", result.Errors)
	}
	c.JSON(status, result)
}

// AggregateHandler 触发一次聚合
// @Summary 计算并落库元游戏快照
// @Param dry_run query bool false "只计算不落库"
// @Param date query string false "快照日期（默认今天）"
// @Param lookback_days query int false "名次窗口长度（默认7天）"
// @Param regions query string false "区域列表，逗号分隔（默认global）"
// @Param formats query string false "赛制列表，逗号分隔（默认standard）"
// @Param best_ofs query string false "局数列表，逗号分隔（默认3）"
// @Param tournament_types query string false "赛事类型列表，逗号分隔"
// @Success 200 {object} service.AggregateResult
// @Router /pipeline/aggregate [post]
func (h *PipelineHandler) AggregateHandler(c *gin.Context) {
	opts := service.AggregateOptions{
		DryRun:          parseBool(c.Query("dry_run")),
		Regions:         splitList(c.Query("regions")),
		Formats:         splitList(c.Query("formats")),
		TournamentTypes: splitList(c.Query("tournament_types")),
	}
	if v := c.Query("date"); v != "" {
		date, err := extract.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的date参数: " + v})
			return
		}
		opts.Date = date
	}
	if v := c.Query("lookback_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的lookback_days参数: " + v})
			return
		}
		opts.LookbackDays = n
	}
	for _, v := range splitList(c.Query("best_ofs")) {
		n, err := strconv.Atoi(v)
		if err != nil || (n != 1 && n != 3) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的best_ofs参数: " + v})
			return
		}
		opts.BestOfs = append(opts.BestOfs, n)
	}

	result := h.aggregateService.Run(c.Request.Context(), opts)
	if !opts.DryRun {
		metrics.ObserveAggregate(result.Success, result.Computed, result.Saved)
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
		h.logger.Errorf("聚合运行存在错误: %v", result.Errors)
	}
	c.JSON(status, result)
}

// HealthHandler 健康检查
func (h *PipelineHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
