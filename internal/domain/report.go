package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

const (
	ErrCodeInputNotFound = "input_not_found"
	ErrCodeConfigInvalid = "config_invalid"
	ErrCodeScanFailed    = "scan_failed"
	ErrCodeDecodeFailed  = "annotation_decode_failed"
	ErrCodeOutputFailed  = "output_write_failed"
	ErrCodeInterrupted   = "interrupted"
)

// RunReport 是一次运行的对外稳定摘要（--report 写入的 JSON）。
type RunReport struct {
	RunID  string `json:"run_id"`
	Source string `json:"source"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Format string `json:"format"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Summary ReportSummary  `json:"summary"`
	Records []RecordResult `json:"records"`
}

type ReportSummary struct {
	Files        int   `json:"files"`
	Records      int   `json:"records"`
	EmptyRecords int   `json:"empty_records"`
	Rows         int   `json:"rows"`
	Bytes        int64 `json:"bytes"`
}

type RecordResult struct {
	Record string `json:"record"`
	Count  int    `json:"count"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) records 稳定排序：按记录名字典序
// 3) summary 中的 records/empty_records/rows 由 records 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Records == nil {
		r.Records = []RecordResult{}
	}
	sort.SliceStable(r.Records, func(i, j int) bool { return r.Records[i].Record < r.Records[j].Record })

	r.Summary.Records = len(r.Records)
	r.Summary.EmptyRecords = 0
	r.Summary.Rows = 0
	for _, it := range r.Records {
		if it.Count == 0 {
			r.Summary.EmptyRecords++
		}
		r.Summary.Rows += it.Count
	}

	if r.Status == "" {
		r.Status = StatusOK
		if r.ErrorCode != "" {
			r.Status = StatusFailed
		}
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
