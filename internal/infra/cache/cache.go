package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/annmetrics/internal/infra/fsx"
)

// Store 提供 <Root>/<namespace>/<db>/<name> 下的文件缓存读写（远程注释文件的本地副本）。
//
// 约束：
// - Root 为空：禁用缓存（读总是未命中，写直接忽略）
// - ReadOnly=true：只允许读
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	root = strings.TrimSpace(root)
	if root != "" {
		root = filepath.Clean(root)
	}
	return Store{Root: root, ReadOnly: readOnly}
}

// Enabled 表示是否配置了缓存目录。
func (s Store) Enabled() bool { return s.Root != "" }

// Path 返回缓存文件的绝对路径。db 允许多级（例如 "mitdb/1.0.0"），每一级都必须是安全的路径段。
func (s Store) Path(namespace, db, name string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("cache: disabled")
	}
	if err := cleanSegment(namespace); err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(db, "/"), "/")
	for _, p := range parts {
		if err := cleanSegment(p); err != nil {
			return "", err
		}
	}
	if err := cleanSegment(name); err != nil {
		return "", err
	}
	elems := append([]string{s.Root, namespace}, parts...)
	elems = append(elems, name)
	return filepath.Join(elems...), nil
}

// Read 读取缓存；未命中返回 ok=false（不算错误）。
func (s Store) Read(namespace, db, name string) ([]byte, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	path, err := s.Path(namespace, db, name)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Write 原子写入缓存（覆盖）。
func (s Store) Write(namespace, db, name string, data []byte) error {
	if !s.Enabled() {
		return nil
	}
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.Path(namespace, db, name)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), data)
}

var segmentRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func cleanSegment(p string) error {
	// 最小约束：避免路径穿越；不做更多“聪明”处理。
	if p == "" || p == "." || p == ".." || !segmentRE.MatchString(p) {
		return fmt.Errorf("非法缓存路径段：%q", p)
	}
	return nil
}
