package service

import "fmt"

// IngestResult 单次摄取运行的结构化汇总。
// 无论部分失败与否每次运行都返回，错误不会越过流水线边界向上抛。
type IngestResult struct {
	DryRun     bool     `json:"dry_run"`
	Fetched    int      `json:"fetched"`    // 抓到的赛事中间记录数
	Created    int      `json:"created"`    // 新建规范赛事数
	Updated    int      `json:"updated"`    // 更新规范赛事数
	Skipped    int      `json:"skipped"`    // 跳过数（无来源URL/无变化/无效状态推进）
	Deduped    int      `json:"deduped"`    // 跨源合并数
	Reresolved int      `json:"reresolved"` // 卡组归类重解析数
	Errors     []string `json:"errors"`
	Success    bool     `json:"success"`
}

// AggregateResult 单次聚合运行的结构化汇总。
// dry-run与真实运行的计数完全一致，区别只在dry_run标志与是否真正落库。
type AggregateResult struct {
	DryRun             bool     `json:"dry_run"`
	Computed           int      `json:"computed"`             // 计算出的快照数
	Saved              int      `json:"saved"`                // 落库的快照数（dry-run时为将要落库的快照数）
	DataQualitySkipped int      `json:"data_quality_skipped"` // 卡组明细中被跳过的脏条目数
	Errors             []string `json:"errors"`
	Success            bool     `json:"success"`
}

func (r *IngestResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *IngestResult) finish() *IngestResult {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	r.Success = len(r.Errors) == 0
	return r
}

func (r *AggregateResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *AggregateResult) finish() *AggregateResult {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	r.Success = len(r.Errors) == 0
	return r
}
