package run

import (
	"time"

	"github.com/John-Robertt/annmetrics/internal/config"
	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/source"
)

// Observer 用于把“运行进度/阶段/记录结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出
// - 事件在调用 ExecuteWithObserver 的 goroutine 上按顺序触发
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(runID string, eff config.EffectiveConfig, src source.Source)
	// OnPhaseDone 在阶段结束时调用：scan / load / flatten / write。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnRecordLoaded 在每条记录解码成功后调用。
	OnRecordLoaded(idx, total int, rec domain.AnnotationRecord, dur time.Duration)
}

// 阶段名。
const (
	PhaseScan    = "scan"
	PhaseLoad    = "load"
	PhaseFlatten = "flatten"
	PhaseWrite   = "write"
)
