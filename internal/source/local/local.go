package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/scan"
	"github.com/John-Robertt/annmetrics/internal/source"
)

// Source 从本地目录读取注释文件。
type Source struct {
	Dir    string
	Suffix string // 例如 ".prf"
}

func New(dir, suffix string) Source {
	return Source{Dir: filepath.Clean(dir), Suffix: suffix}
}

func (Source) Name() string { return "local" }

func (s Source) Location() string { return s.Dir }

// List 非递归列出 Dir 下的描述文件。
func (s Source) List(ctx context.Context) ([]domain.AnnotationDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	descs, err := scan.ScanAnnotations(s.Dir, s.Suffix)
	if err != nil {
		return nil, &source.Error{Source: s.Name(), Stage: "list", Err: err}
	}
	return descs, nil
}

// Read 打开 <id>.<annotator> 并解码。
func (s Source) Read(ctx context.Context, id domain.RecordID, annotator string) (domain.AnnotationRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnnotationRecord{}, err
	}
	if id == "" {
		return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "read", Err: errors.New("record id 不能为空")}
	}

	f, err := os.Open(string(id) + "." + annotator)
	if err != nil {
		return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "read", ID: id, Err: err}
	}
	defer f.Close()

	rec, err := source.DecodeRecord(id, annotator, f)
	if err != nil {
		return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "decode", ID: id, Err: err}
	}
	return rec, nil
}

var _ source.Source = Source{}
