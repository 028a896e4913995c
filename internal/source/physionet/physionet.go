// Package physionet 从 PhysioNet 风格的 HTTP 目录索引读取注释文件。
//
// 目录索引是普通 HTML 页面（<a href="100.atr">），用 goquery 提取链接；
// 注释文件按 <base>/<db>/<record>.<annotator> 下载，成功解码后写入本地缓存。
package physionet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/infra/cache"
	"github.com/John-Robertt/annmetrics/internal/source"
)

const (
	DefaultBaseURL = "https://physionet.org/files/"

	cacheNamespace = "physionet"
)

// Source 的 DB 是数据库相对路径，例如 "mitdb/1.0.0"。
type Source struct {
	BaseURL string
	DB      string
	Suffix  string // 例如 ".prf"
	Client  *http.Client
	Cache   cache.Store
}

func (Source) Name() string { return "physionet" }

func (s Source) Location() string { return s.dirURL() }

func (s Source) dirURL() string {
	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.Trim(s.DB, "/") + "/"
}

func (s Source) db() string { return strings.Trim(s.DB, "/") }

// List 读取目录索引页，返回名字以 Suffix 结尾的文件（不进入子目录）。
func (s Source) List(ctx context.Context) ([]domain.AnnotationDescriptor, error) {
	if err := s.check(); err != nil {
		return nil, &source.Error{Source: s.Name(), Stage: "list", Err: err}
	}
	dir := s.dirURL()
	body, err := fetchURL(ctx, s.Client, dir)
	if err != nil {
		return nil, &source.Error{Source: s.Name(), Stage: "list", Err: err}
	}
	descs, err := parseIndex(body, dir, s.Suffix)
	if err != nil {
		return nil, &source.Error{Source: s.Name(), Stage: "list", Err: err}
	}
	return descs, nil
}

// Read 下载 <id>.<annotator> 并解码；缓存命中时不访问网络。
func (s Source) Read(ctx context.Context, id domain.RecordID, annotator string) (domain.AnnotationRecord, error) {
	if err := s.check(); err != nil {
		return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "read", ID: id, Err: err}
	}
	if id == "" || strings.Contains(string(id), "/") {
		return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "read", ID: id, Err: errors.New("非法 record id")}
	}
	name := string(id) + "." + annotator

	data, hit, err := s.Cache.Read(cacheNamespace, s.db(), name)
	if err != nil {
		return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "read", ID: id, Err: err}
	}
	if !hit {
		data, err = fetchURL(ctx, s.Client, s.dirURL()+url.PathEscape(name))
		if err != nil {
			return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "read", ID: id, Err: err}
		}
	}

	rec, err := source.DecodeRecord(id, annotator, bytes.NewReader(data))
	if err != nil {
		return domain.AnnotationRecord{}, &source.Error{Source: s.Name(), Stage: "decode", ID: id, Err: err}
	}

	// 只缓存能解码的内容；缓存写失败不影响本次结果（只读缓存同理）。
	if !hit {
		_ = s.Cache.Write(cacheNamespace, s.db(), name, data)
	}
	return rec, nil
}

func (s Source) check() error {
	if s.Client == nil {
		return errors.New("http client 不能为空")
	}
	if s.db() == "" {
		return errors.New("db 不能为空")
	}
	return nil
}

func parseIndex(html []byte, dirURL, suffix string) ([]domain.AnnotationDescriptor, error) {
	if suffix == "" {
		return nil, errors.New("suffix 不能为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(dirURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.RecordID]struct{})
	var out []domain.AnnotationDescriptor
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		ref, err := url.Parse(href)
		if err != nil || ref.IsAbs() || ref.RawQuery != "" || ref.Fragment != "" {
			return
		}
		name, err := url.PathUnescape(ref.Path)
		if err != nil || name == "" || strings.Contains(name, "/") {
			// 子目录链接以 '/' 结尾，父目录为 "../"。
			return
		}
		if name == suffix || !strings.HasSuffix(name, suffix) {
			return
		}
		id := domain.RecordID(strings.TrimSuffix(name, suffix))
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, domain.AnnotationDescriptor{
			ID:         id,
			SourcePath: base.ResolveReference(ref).String(),
		})
	})

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if out == nil {
		out = []domain.AnnotationDescriptor{}
	}
	return out, nil
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &source.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(resp.Body)
}

var _ source.Source = Source{}
