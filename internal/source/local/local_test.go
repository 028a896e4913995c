package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/source"
	"github.com/John-Robertt/annmetrics/internal/wfdb"
)

func writeAnn(t *testing.T, path string, anns ...wfdb.Annotation) {
	t.Helper()
	var buf bytes.Buffer
	if err := wfdb.Encode(&buf, anns); err != nil {
		t.Fatalf("Encode 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}

func TestSource_ListAndRead(t *testing.T) {
	dir := t.TempDir()
	writeAnn(t, filepath.Join(dir, "r1.prf"),
		wfdb.Annotation{Sample: 10, Type: 1},
		wfdb.Annotation{Sample: 20, Type: 1},
		wfdb.Annotation{Sample: 30, Type: 5},
	)
	if err := os.WriteFile(filepath.Join(dir, "r1.hea"), []byte("r1 1 360"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	s := New(dir, ".prf")
	descs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("期望 1 个描述文件，实际 %d", len(descs))
	}

	rec, err := s.Read(context.Background(), descs[0].ID, "prf")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if rec.RecordName != "r1" || rec.Annotator != "prf" {
		t.Fatalf("记录名/注释器不符合预期：%+v", rec)
	}
	want := []int64{10, 20, 30}
	if len(rec.Samples) != len(want) {
		t.Fatalf("期望 %d 个样本，实际 %v", len(want), rec.Samples)
	}
	for i := range want {
		if rec.Samples[i] != want[i] {
			t.Fatalf("Samples[%d] 期望 %d，实际 %d", i, want[i], rec.Samples[i])
		}
	}
}

func TestSource_ReadErrorsCarryStage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.prf"), []byte{0x01}, 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	s := New(dir, ".prf")

	_, err := s.Read(context.Background(), domain.RecordID(filepath.Join(dir, "missing")), "prf")
	var se *source.Error
	if !errors.As(err, &se) || se.Stage != "read" {
		t.Fatalf("缺失文件期望 stage=read，实际 %v", err)
	}

	_, err = s.Read(context.Background(), domain.RecordID(filepath.Join(dir, "bad")), "prf")
	if !errors.As(err, &se) || se.Stage != "decode" {
		t.Fatalf("损坏文件期望 stage=decode，实际 %v", err)
	}
	if !errors.Is(err, wfdb.ErrTruncated) {
		t.Fatalf("期望 ErrTruncated，实际 %v", err)
	}
}

func TestSource_ListMissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), ".prf")
	_, err := s.List(context.Background())
	var se *source.Error
	if !errors.As(err, &se) || se.Stage != "list" {
		t.Fatalf("期望 stage=list 的 source.Error，实际 %v", err)
	}
}

func TestSource_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(t.TempDir(), ".prf").List(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
}
