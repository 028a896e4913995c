package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Registry 是输出格式的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Writer
}

func NewRegistry(writers ...Writer) (Registry, error) {
	byName := make(map[string]Writer, len(writers))
	for _, w := range writers {
		if w == nil {
			return Registry{}, fmt.Errorf("writer 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(w.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("writer.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的输出格式：%q", name)
		}
		byName[name] = w
	}
	return Registry{byName: byName}, nil
}

// Default 注册全部内置格式。
func Default() Registry {
	r, err := NewRegistry(CSV{}, Parquet{})
	if err != nil {
		panic(err)
	}
	return r
}

func (r Registry) Get(name string) (Writer, bool) {
	if r.byName == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	w, ok := r.byName[name]
	return w, ok
}

// FormatForPath 按输出文件扩展名推断格式；无法推断时返回 "csv"。
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return "parquet"
	default:
		return "csv"
	}
}
