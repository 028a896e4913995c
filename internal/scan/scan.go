package scan

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/annmetrics/internal/domain"
)

// ErrEmptySuffix 表示调用方未给出描述文件后缀。
var ErrEmptySuffix = errors.New("scan: empty suffix")

// ScanAnnotations 列出 dir 下（不递归）以 suffix 结尾的注释描述文件。
//
// 规则（硬约束）：
// - 只看 dir 的直接子项；子目录即使名字匹配也忽略
// - ID 为完整路径去掉 suffix；同一次扫描内 ID 唯一
// - 没有匹配项返回空切片，不算错误
//
// 注意：扫描阶段只列目录，不读文件内容；dir 是否存在由调用方负责校验。
func ScanAnnotations(dir, suffix string) ([]domain.AnnotationDescriptor, error) {
	if suffix == "" {
		return nil, ErrEmptySuffix
	}
	dir = filepath.Clean(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AnnotationDescriptor, 0, len(entries))
	seen := make(map[domain.RecordID]struct{}, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, suffix) || name == suffix {
			continue
		}
		if !isFileEntry(dir, e) {
			continue
		}

		full := filepath.Join(dir, name)
		id := domain.RecordID(strings.TrimSuffix(full, suffix))
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		out = append(out, domain.AnnotationDescriptor{
			ID:         id,
			SourcePath: full,
		})
	}

	// 强制稳定输出：同一目录两次运行得到逐字节一致的结果表。
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// isFileEntry 判断目录项是否为常规文件（允许指向常规文件的符号链接）。
func isFileEntry(dir string, e os.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(dir, e.Name()))
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}
