package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/annmetrics/internal/app"
	"github.com/John-Robertt/annmetrics/internal/config"
	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/metrics"
	"github.com/John-Robertt/annmetrics/internal/output"
	"github.com/John-Robertt/annmetrics/internal/source"
)

// Error 是 run 阶段的结构化错误（带 error_code 与失败阶段）。
type Error struct {
	Code  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s（%s）", e.Code, e.Stage)
	}
	return fmt.Sprintf("%s（%s）：%v", e.Code, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Execute 执行一次 scan → load → flatten → write。
func Execute(ctx context.Context, eff config.EffectiveConfig, src source.Source, writers output.Registry) (domain.RunReport, error) {
	return ExecuteWithObserver(ctx, eff, src, writers, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
//
// 全有或全无：只有全部记录解码成功后才会打开输出文件；任何阶段失败都返回 *Error，
// 同时返回已填好 error_code 的 RunReport（用于 --report）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, src source.Source, writers output.Registry, obs Observer) (domain.RunReport, error) {
	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Output:    eff.Output,
		Format:    eff.Format,
		StartedAt: time.Now().UTC(),
	}
	if src != nil {
		rr.Source = src.Name()
		rr.Input = src.Location()
	}
	if obs != nil {
		obs.OnStart(rr.RunID, eff, src)
	}

	fail := func(code, stage string, err error) (domain.RunReport, error) {
		if ctx.Err() != nil {
			code = domain.ErrCodeInterrupted
		}
		e := &Error{Code: code, Stage: stage, Err: err}
		rr.ErrorCode = code
		rr.ErrorMsg = e.Error()
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr, e
	}

	if src == nil {
		return fail(domain.ErrCodeConfigInvalid, "init", errors.New("source 不能为空"))
	}
	w, ok := writers.Get(eff.Format)
	if !ok {
		return fail(domain.ErrCodeConfigInvalid, "init", fmt.Errorf("不支持的输出格式：%q", eff.Format))
	}

	scanStarted := time.Now()
	descs, err := src.List(ctx)
	if err != nil {
		code := domain.ErrCodeScanFailed
		if isNotFound(err) {
			code = domain.ErrCodeInputNotFound
		}
		return fail(code, PhaseScan, err)
	}
	rr.Summary.Files = len(descs)
	if obs != nil {
		obs.OnPhaseDone(PhaseScan, map[string]any{"files": len(descs)}, time.Since(scanStarted))
	}

	loadStarted := time.Now()
	var onLoaded app.LoadedFunc
	if obs != nil {
		onLoaded = obs.OnRecordLoaded
	}
	records, err := app.LoadAll(ctx, src, descs, eff.Annotator, onLoaded)
	if err != nil {
		return fail(domain.ErrCodeDecodeFailed, PhaseLoad, err)
	}
	rr.Records = make([]domain.RecordResult, 0, len(records))
	empty := 0
	for _, r := range records {
		rr.Records = append(rr.Records, domain.RecordResult{Record: r.RecordName, Count: r.Count()})
		if r.Count() == 0 {
			empty++
		}
	}
	if obs != nil {
		obs.OnPhaseDone(PhaseLoad, map[string]any{"records": len(records), "empty": empty}, time.Since(loadStarted))
	}

	flattenStarted := time.Now()
	rows := metrics.Flatten(records)
	if obs != nil {
		obs.OnPhaseDone(PhaseFlatten, map[string]any{"rows": len(rows)}, time.Since(flattenStarted))
	}

	if err := ctx.Err(); err != nil {
		return fail(domain.ErrCodeInterrupted, PhaseWrite, err)
	}
	writeStarted := time.Now()
	n, err := w.Write(eff.Output, rows)
	if err != nil {
		return fail(domain.ErrCodeOutputFailed, PhaseWrite, err)
	}
	rr.Summary.Bytes = n
	if obs != nil {
		obs.OnPhaseDone(PhaseWrite, map[string]any{
			"rows":    len(rows),
			"records": len(records),
			"bytes":   n,
			"path":    eff.Output,
			"format":  w.Name(),
		}, time.Since(writeStarted))
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var he *source.HTTPStatusError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}
