package app

import (
	"context"
	"fmt"
	"time"

	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/source"
)

// LoadedFunc 在每条记录解码成功后调用（idx 从 1 开始）。
type LoadedFunc func(idx, total int, rec domain.AnnotationRecord, dur time.Duration)

// LoadAll 按 descs 的顺序逐个解码，全部成功才返回结果。
//
// - 任何一条失败立即中止整批，不返回部分结果
// - 不做重试，不并发
// - onLoaded 可为 nil
func LoadAll(ctx context.Context, r source.Reader, descs []domain.AnnotationDescriptor, annotator string, onLoaded LoadedFunc) ([]domain.AnnotationRecord, error) {
	if annotator == "" {
		annotator = domain.DefaultAnnotator
	}

	records := make([]domain.AnnotationRecord, 0, len(descs))
	for i, d := range descs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		started := time.Now()
		rec, err := r.Read(ctx, d.ID, annotator)
		if err != nil {
			return nil, fmt.Errorf("加载记录 %s 失败：%w", d.ID, err)
		}
		records = append(records, rec)

		if onLoaded != nil {
			onLoaded(i+1, len(descs), rec, time.Since(started))
		}
	}
	return records, nil
}
