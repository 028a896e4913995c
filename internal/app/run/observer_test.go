package run

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/John-Robertt/annmetrics/internal/config"
	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/output"
	"github.com/John-Robertt/annmetrics/internal/source"
	"github.com/John-Robertt/annmetrics/internal/source/local"
)

type recordObserver struct {
	startCalls int
	runID      string
	phases     []string
	loaded     []string
	writeRows  any
}

func (o *recordObserver) OnStart(runID string, eff config.EffectiveConfig, src source.Source) {
	o.startCalls++
	o.runID = runID
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
	if name == PhaseWrite {
		o.writeRows = fields["rows"]
	}
}

func (o *recordObserver) OnRecordLoaded(idx, total int, rec domain.AnnotationRecord, dur time.Duration) {
	o.loaded = append(o.loaded, rec.RecordName)
}

func TestExecuteWithObserver_EmitsPhaseAndRecordEvents(t *testing.T) {
	dir := t.TempDir()
	writeAnn(t, filepath.Join(dir, "b.prf"), 4, 8)
	writeAnn(t, filepath.Join(dir, "a.prf"), 2)

	obs := &recordObserver{}
	rr, err := ExecuteWithObserver(context.Background(), effFor(dir, filepath.Join(t.TempDir(), "o.csv")),
		local.New(dir, ".prf"), output.Default(), obs)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if obs.startCalls != 1 || obs.runID != rr.RunID {
		t.Fatalf("OnStart 调用不符合预期：calls=%d runID=%q report=%q", obs.startCalls, obs.runID, rr.RunID)
	}
	wantPhases := []string{PhaseScan, PhaseLoad, PhaseFlatten, PhaseWrite}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if !reflect.DeepEqual(obs.loaded, []string{"a", "b"}) {
		t.Fatalf("记录事件不符合预期：%v", obs.loaded)
	}
	if obs.writeRows != 3 {
		t.Fatalf("write 阶段 rows 期望 3，实际 %v", obs.writeRows)
	}
}

func TestExecuteWithObserver_StopsAtFailedPhase(t *testing.T) {
	obs := &recordObserver{}
	dir := filepath.Join(t.TempDir(), "nope")
	_, err := ExecuteWithObserver(context.Background(), effFor(dir, filepath.Join(t.TempDir(), "o.csv")),
		local.New(dir, ".prf"), output.Default(), obs)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if len(obs.phases) != 0 {
		t.Fatalf("scan 失败后不应有阶段事件：%v", obs.phases)
	}
}
