package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/output"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingInput 表示 CLI 与配置文件都没有给出 dir / pn_dir。
	ErrCodeMissingInput = "config_missing_input"
	// ErrCodeMissingOutput 表示 CLI 与配置文件都没有给出 output。
	ErrCodeMissingOutput = "config_missing_output"
)

const (
	// DefaultPhysioNetBaseURL 是远程注释库的默认根地址。
	DefaultPhysioNetBaseURL = "https://physionet.org/files/"
	// DefaultFormat 是无法从扩展名推断时的输出格式。
	DefaultFormat = "csv"
)

// 按顺序在 cwd 中查找，取第一个存在的。
var discoverNames = []string{"annmetrics.json", "annmetrics.yaml", "annmetrics.yml"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 字符串参数以非空视为显式指定；bool 参数需要 *Set 标记（例如 --verbose=false 覆盖配置中的 true）。
type CLIArgs struct {
	Dir    string
	PnDir  string
	Output string
	Format string
	Report string

	Verbose    bool
	VerboseSet bool

	// ConfigPath 非空时必须存在；为空时在 cwd 中自动发现（可选）。
	ConfigPath string
}

// FileConfig 对应 annmetrics.json / annmetrics.yaml 的解析结构。
type FileConfig struct {
	Dir              string       `json:"dir" yaml:"dir"`
	PnDir            string       `json:"pn_dir" yaml:"pn_dir"`
	Output           string       `json:"output" yaml:"output"`
	Format           string       `json:"format" yaml:"format"`
	Annotator        string       `json:"annotator" yaml:"annotator"`
	Suffix           string       `json:"suffix" yaml:"suffix"`
	Report           string       `json:"report" yaml:"report"`
	Verbose          *bool        `json:"verbose" yaml:"verbose"`
	PhysioNetBaseURL string       `json:"physionet_base_url" yaml:"physionet_base_url"`
	CacheDir         *string      `json:"cache_dir" yaml:"cache_dir"`
	Proxy            *ProxyConfig `json:"proxy" yaml:"proxy"`
}

type ProxyConfig struct {
	URL string `json:"url" yaml:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
//
// 不变量：Dir 与 PnDir 恰好一个非空；路径均为绝对路径。
type EffectiveConfig struct {
	Dir   string
	PnDir string

	Output string
	Format string

	Annotator string
	Suffix    string

	Report  string
	Verbose bool

	PhysioNetBaseURL string
	// CacheDir 为空表示禁用远程下载缓存。
	CacheDir string
	ProxyURL string

	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string
}

// Remote 表示输入来自 PhysioNet 而不是本地目录。
func (e EffectiveConfig) Remote() bool { return e.PnDir != "" }

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingInput:
		return fmt.Sprintf("%s：缺少输入目录（-d/--dir 或 --pn-dir）", e.Code)
	case ErrCodeMissingOutput:
		return fmt.Sprintf("%s：缺少输出文件（-o/--out）", e.Code)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsUsage 表示该错误属于“参数不全”，CLI 应打印帮助并以 2 退出。
func IsUsage(err error) bool {
	switch Code(err) {
	case ErrCodeMissingInput, ErrCodeMissingOutput:
		return true
	}
	return false
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 给了 --config：必须存在
// 2) 否则依次尝试 <cwd>/annmetrics.json、annmetrics.yaml、annmetrics.yml（都不存在也不报错）
//
// 覆盖优先级：CLI > 配置文件 > 默认值。
// CLI 路径相对 cwd 解析；配置文件中的路径相对配置文件所在目录解析。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range discoverNames {
			p := filepath.Join(cwdAbs, name)
			c, exists, e := readFileConfig(p)
			if e != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: e}
			}
			if exists {
				cfgPath, fc = p, c
				break
			}
		}
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	fileBase := cwdAbs
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}
	invalid := func(err error) error { return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err} }

	eff := EffectiveConfig{ConfigPath: cfgPath}

	// 输入：CLI 给了任意一种输入，就完全忽略配置文件中的输入。
	cliDir, cliPn := strings.TrimSpace(cli.Dir), strings.Trim(strings.TrimSpace(cli.PnDir), "/")
	fileDir, filePn := strings.TrimSpace(fc.Dir), strings.Trim(strings.TrimSpace(fc.PnDir), "/")
	switch {
	case cliDir != "" && cliPn != "":
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: errors.New("-d/--dir 与 --pn-dir 不能同时使用")}
	case cliDir != "":
		eff.Dir = absCleanFrom(cwdAbs, cliDir)
	case cliPn != "":
		eff.PnDir = cliPn
	case fileDir != "" && filePn != "":
		return EffectiveConfig{}, invalid(errors.New("dir 与 pn_dir 不能同时配置"))
	case fileDir != "":
		eff.Dir = absCleanFrom(fileBase, fileDir)
	case filePn != "":
		eff.PnDir = filePn
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingInput, Path: cfgPath}
	}
	if eff.PnDir != "" {
		if err := validatePnDir(eff.PnDir); err != nil {
			return EffectiveConfig{}, invalid(err)
		}
	}

	switch {
	case strings.TrimSpace(cli.Output) != "":
		eff.Output = absCleanFrom(cwdAbs, cli.Output)
	case strings.TrimSpace(fc.Output) != "":
		eff.Output = absCleanFrom(fileBase, fc.Output)
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingOutput, Path: cfgPath}
	}

	// format：CLI > config > 由输出扩展名推断
	format := strings.ToLower(strings.TrimSpace(cli.Format))
	formatFromCLI := format != ""
	if format == "" {
		format = strings.ToLower(strings.TrimSpace(fc.Format))
	}
	if format == "" {
		format = output.FormatForPath(eff.Output)
	}
	if err := validateFormat(format); err != nil {
		if formatFromCLI {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
		}
		return EffectiveConfig{}, invalid(err)
	}
	eff.Format = format

	eff.Annotator = strings.TrimSpace(fc.Annotator)
	if eff.Annotator == "" {
		eff.Annotator = domain.DefaultAnnotator
	}
	if err := validateAnnotator(eff.Annotator); err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	eff.Suffix = fc.Suffix
	if eff.Suffix == "" {
		eff.Suffix = "." + eff.Annotator
	}
	if strings.ContainsAny(eff.Suffix, `/\`) {
		return EffectiveConfig{}, invalid(fmt.Errorf("suffix 不能包含路径分隔符：%q", eff.Suffix))
	}

	switch {
	case strings.TrimSpace(cli.Report) != "":
		eff.Report = absCleanFrom(cwdAbs, cli.Report)
	case strings.TrimSpace(fc.Report) != "":
		eff.Report = absCleanFrom(fileBase, fc.Report)
	}

	// verbose：CLI > config > 默认 false
	if cli.VerboseSet {
		eff.Verbose = cli.Verbose
	} else if fc.Verbose != nil {
		eff.Verbose = *fc.Verbose
	}

	eff.PhysioNetBaseURL = strings.TrimSpace(fc.PhysioNetBaseURL)
	if eff.PhysioNetBaseURL == "" {
		eff.PhysioNetBaseURL = DefaultPhysioNetBaseURL
	}
	if err := validateHTTPURL("physionet_base_url", eff.PhysioNetBaseURL); err != nil {
		return EffectiveConfig{}, invalid(err)
	}

	// cache_dir：未配置用用户缓存目录；显式配置为空串则禁用。
	if fc.CacheDir != nil {
		if d := strings.TrimSpace(*fc.CacheDir); d != "" {
			eff.CacheDir = absCleanFrom(fileBase, d)
		}
	} else if d, err := os.UserCacheDir(); err == nil {
		eff.CacheDir = filepath.Join(d, "annmetrics")
	}

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		u, err := url.Parse(eff.ProxyURL)
		if err != nil {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
		if u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid(fmt.Errorf("proxy.url 必须包含 scheme 与 host：%q", eff.ProxyURL))
		}
	}

	return eff, nil
}

func validateFormat(f string) error {
	switch f {
	case "csv", "parquet":
		return nil
	default:
		return fmt.Errorf("format 只能是 csv 或 parquet，实际是 %q", f)
	}
}

func validateAnnotator(a string) error {
	if strings.ContainsAny(a, `./\`) || strings.TrimSpace(a) != a {
		return fmt.Errorf("annotator 不能包含 '.'、路径分隔符或空白：%q", a)
	}
	return nil
}

func validatePnDir(p string) error {
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("pn_dir 无效：%q", p)
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件（按扩展名选择 JSON 或 YAML）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
