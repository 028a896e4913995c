package scan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/annmetrics/internal/domain"
)

func TestScanAnnotations_SelectsSuffixOnly(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "100.prf"))
	touch(t, filepath.Join(dir, "101.prf"))
	touch(t, filepath.Join(dir, "100.hea"))
	touch(t, filepath.Join(dir, "100.dat"))
	touch(t, filepath.Join(dir, "notes.txt"))

	got, err := ScanAnnotations(dir, ".prf")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("期望 2 个描述文件，实际 %d", len(got))
	}
	want0 := domain.RecordID(filepath.Join(dir, "100"))
	if got[0].ID != want0 {
		t.Fatalf("期望 id=%q，实际=%q", want0, got[0].ID)
	}
	if got[0].SourcePath != filepath.Join(dir, "100.prf") {
		t.Fatalf("期望 source=%q，实际=%q", filepath.Join(dir, "100.prf"), got[0].SourcePath)
	}
	if got[1].ID.Name() != "101" {
		t.Fatalf("期望第二条为 101，实际=%q", got[1].ID)
	}
}

func TestScanAnnotations_NonRecursive(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "sub", "200.prf"))
	if err := os.MkdirAll(filepath.Join(dir, "dir.prf"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	touch(t, filepath.Join(dir, "300.prf"))

	got, err := ScanAnnotations(dir, ".prf")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0].ID.Name() != "300" {
		t.Fatalf("期望只有 300，实际 %+v", got)
	}
}

func TestScanAnnotations_EmptyDirIsNotError(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.atr"))

	got, err := ScanAnnotations(dir, ".prf")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("期望空切片，实际 %#v", got)
	}
}

func TestScanAnnotations_CountMatchesN(t *testing.T) {
	dir := t.TempDir()
	const n, m = 7, 5
	for i := 0; i < n; i++ {
		touch(t, filepath.Join(dir, "r"+string(rune('a'+i))+".prf"))
	}
	for i := 0; i < m; i++ {
		touch(t, filepath.Join(dir, "r"+string(rune('a'+i))+".dat"))
	}

	got, err := ScanAnnotations(dir, ".prf")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != n {
		t.Fatalf("期望 %d 个，实际 %d", n, len(got))
	}
	seen := map[domain.RecordID]bool{}
	for _, d := range got {
		if seen[d.ID] {
			t.Fatalf("重复的 id：%q", d.ID)
		}
		seen[d.ID] = true
	}
}

func TestScanAnnotations_SuffixIsCaseSensitive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "X.PRF"))

	got, err := ScanAnnotations(dir, ".prf")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("期望 0 个（后缀区分大小写），实际 %d", len(got))
	}
}

func TestScanAnnotations_Errors(t *testing.T) {
	if _, err := ScanAnnotations(t.TempDir(), ""); !errors.Is(err, ErrEmptySuffix) {
		t.Fatalf("期望 ErrEmptySuffix，实际 %v", err)
	}
	if _, err := ScanAnnotations(filepath.Join(t.TempDir(), "missing"), ".prf"); !os.IsNotExist(err) {
		t.Fatalf("期望不存在错误，实际 %v", err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
