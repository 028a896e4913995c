package main

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestCLI_MissingDirectory_ExitTwoWithHelp(t *testing.T) {
	// 锁定对外契约：目录不存在时非零退出、打印帮助，且不触碰输出文件。
	root := t.TempDir()
	out := filepath.Join(root, "out.csv")
	if err := os.WriteFile(out, []byte("keep"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	cmd := exec.Command("go", "run", "./cmd/annmetrics", "-d", filepath.Join(root, "missing"), "-o", out)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("期望非零退出，实际 err=%v\nstderr=%s", err, stderr.String())
	}
	if !strings.Contains(stderr.String(), "用法：") {
		t.Fatalf("stderr 应包含帮助：%q", stderr.String())
	}

	b, _ := os.ReadFile(out)
	if string(b) != "keep" {
		t.Fatalf("输出文件不应被修改：%q", string(b))
	}
}
