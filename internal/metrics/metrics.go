package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 运行级计数器，/metrics暴露给健康/遥测消费方
var (
	// PipelineRuns 流水线运行次数，按入口与成败区分
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trainerlab",
		Name:      "pipeline_runs_total",
		Help:      "流水线运行次数",
	}, []string{"pipeline", "result"})

	// PipelineRecords 流水线处理的记录数，按入口与处理结果区分
	PipelineRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trainerlab",
		Name:      "pipeline_records_total",
		Help:      "流水线处理的记录数",
	}, []string{"pipeline", "outcome"})
)

// ObserveIngest 摄取运行结束后上报计数
func ObserveIngest(success bool, fetched, created, updated, skipped, deduped int) {
	PipelineRuns.WithLabelValues("ingest", resultLabel(success)).Inc()
	PipelineRecords.WithLabelValues("ingest", "fetched").Add(float64(fetched))
	PipelineRecords.WithLabelValues("ingest", "created").Add(float64(created))
	PipelineRecords.WithLabelValues("ingest", "updated").Add(float64(updated))
	PipelineRecords.WithLabelValues("ingest", "skipped").Add(float64(skipped))
	PipelineRecords.WithLabelValues("ingest", "deduped").Add(float64(deduped))
}

// ObserveAggregate 聚合运行结束后上报计数
func ObserveAggregate(success bool, computed, saved int) {
	PipelineRuns.WithLabelValues("aggregate", resultLabel(success)).Inc()
	PipelineRecords.WithLabelValues("aggregate", "computed").Add(float64(computed))
	PipelineRecords.WithLabelValues("aggregate", "saved").Add(float64(saved))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
