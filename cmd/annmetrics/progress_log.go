package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/John-Robertt/annmetrics/internal/app/run"
	"github.com/John-Robertt/annmetrics/internal/config"
	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/source"
)

var _ run.Observer = (*progressLog)(nil)

// progressLog 把 run 事件分成两路：
// - 结果摘要（文件数、写出行数）固定写到 out（stdout）
// - 阶段耗时与逐条记录写到 zap 的 debug 级别（-v 才可见）
type progressLog struct {
	out io.Writer
	log *zap.SugaredLogger
}

func newProgressLog(out io.Writer, log *zap.SugaredLogger) *progressLog {
	return &progressLog{out: out, log: log}
}

func (p *progressLog) OnStart(runID string, eff config.EffectiveConfig, src source.Source) {
	p.log = p.log.With("run_id", runID)

	input := eff.Dir
	if src != nil {
		input = src.Location()
	}
	p.log.Debugw("开始运行",
		"input", input,
		"output", eff.Output,
		"format", eff.Format,
		"annotator", eff.Annotator,
		"suffix", eff.Suffix,
		"config", eff.ConfigPath,
	)
	if eff.Remote() {
		p.log.Debugw("远程输入", "cache_dir", eff.CacheDir, "proxy", eff.ProxyURL != "")
	}
}

func (p *progressLog) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	kv := make([]any, 0, 2*len(fields)+4)
	kv = append(kv, "phase", name, "dur", dur.Round(time.Millisecond))
	for _, k := range sortedKeys(fields) {
		kv = append(kv, k, fields[k])
	}
	p.log.Debugw("阶段完成", kv...)

	switch name {
	case run.PhaseScan:
		fmt.Fprintf(p.out, "%d annotation files found\n", intField(fields, "files"))
	case run.PhaseWrite:
		fmt.Fprintf(p.out, "Write %d metrics (%d records) to %v (%s)\n",
			intField(fields, "rows"),
			intField(fields, "records"),
			fields["path"],
			humanize.Bytes(uint64(int64Field(fields, "bytes"))),
		)
	}
}

func (p *progressLog) OnRecordLoaded(idx, total int, rec domain.AnnotationRecord, dur time.Duration) {
	p.log.Debugw("记录已解码",
		"idx", idx,
		"total", total,
		"record", rec.RecordName,
		"count", rec.Count(),
		"dur", dur.Round(time.Microsecond),
	)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func int64Field(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
