package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 临时文件总是与目标同目录，出现 EXDEV 说明目标路径本身有问题（例如挂载点变化）。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘 rename 失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// WriteFileAtomicReplace 在 dir 下原子写入 name（临时文件 + rename），已存在则覆盖。
// 用于 report 与下载缓存。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	f, err := CreateAtomic(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Abort()

	if err := writeAll(f, data); err != nil {
		return err
	}
	return f.Commit()
}

// AtomicFile 是写到同目录临时文件、Commit 时 rename 到目标路径的文件。
//
// 在 Commit 之前，目标路径保持原样（不存在或旧内容）；Abort 丢弃临时文件。
type AtomicFile struct {
	*os.File

	dst  string
	done bool
}

// CreateAtomic 在 path 所在目录创建临时文件（目录不存在则创建）。
func CreateAtomic(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("目标路径是目录：%q", path)
	}

	// 前缀带 '.'，避免在目录列表中与正式输出混淆。
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{File: tmp, dst: path}, nil
}

// Commit 刷盘并把临时文件 rename 为目标文件。
func (f *AtomicFile) Commit() error {
	if f.done {
		return errors.New("fsx: atomic file already closed")
	}
	f.done = true

	tmpName := f.Name()
	if err := f.Chmod(0o644); err != nil {
		f.discard(tmpName)
		return err
	}
	if err := f.Sync(); err != nil {
		f.discard(tmpName)
		return err
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := Rename(tmpName, f.dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(filepath.Dir(f.dst))
	return nil
}

// Abort 丢弃临时文件；Commit 之后调用是 no-op。
func (f *AtomicFile) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.discard(f.Name())
}

func (f *AtomicFile) discard(tmpName string) {
	_ = f.File.Close()
	_ = os.Remove(tmpName)
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
