package source

import (
	"context"
	"fmt"
	"io"

	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/wfdb"
)

// Reader 是注释解码能力：给定记录标识与注释器名，返回解码后的记录。
//
// 约束：
// - Read 不做缓存策略之外的重试，失败直接上抛
// - 返回的 Samples 保持源文件顺序
type Reader interface {
	Read(ctx context.Context, id domain.RecordID, annotator string) (domain.AnnotationRecord, error)
}

// Source 把“从哪里列出/读取注释文件”限制在 source 包内部；
// 核心流程只依赖 List + Read 两个操作。
type Source interface {
	Reader
	Name() string
	// Location 返回人类可读的输入位置（目录或远程 URL），用于日志与 report。
	Location() string
	List(ctx context.Context) ([]domain.AnnotationDescriptor, error)
}

// Error 是 source 阶段的可追溯错误。
// 上层据此把失败归类为 scan_failed / annotation_decode_failed。
type Error struct {
	Source string          // source name
	Stage  string          // "list" / "read" / "decode"
	ID     domain.RecordID // list 阶段为空
	Err    error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("source=%s stage=%s: %v", e.Source, e.Stage, e.Err)
	}
	return fmt.Sprintf("source=%s stage=%s record=%s: %v", e.Source, e.Stage, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DecodeRecord 把 MIT 格式注释流解码为 AnnotationRecord。
// 记录名取 id 的基名（与 WFDB 工具链一致）。
func DecodeRecord(id domain.RecordID, annotator string, r io.Reader) (domain.AnnotationRecord, error) {
	anns, err := wfdb.Decode(r)
	if err != nil {
		return domain.AnnotationRecord{}, err
	}
	rec := domain.AnnotationRecord{
		RecordName: id.Name(),
		Annotator:  annotator,
		Samples:    make([]int64, 0, len(anns)),
		Symbols:    make([]string, 0, len(anns)),
	}
	for _, a := range anns {
		rec.Samples = append(rec.Samples, a.Sample)
		rec.Symbols = append(rec.Symbols, a.Symbol())
	}
	return rec, nil
}
