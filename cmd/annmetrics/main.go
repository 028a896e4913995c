package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/John-Robertt/annmetrics/internal/app/run"
	"github.com/John-Robertt/annmetrics/internal/config"
	"github.com/John-Robertt/annmetrics/internal/domain"
	"github.com/John-Robertt/annmetrics/internal/infra/cache"
	"github.com/John-Robertt/annmetrics/internal/infra/fsx"
	"github.com/John-Robertt/annmetrics/internal/infra/httpx"
	"github.com/John-Robertt/annmetrics/internal/output"
	"github.com/John-Robertt/annmetrics/internal/source"
	"github.com/John-Robertt/annmetrics/internal/source/local"
	"github.com/John-Robertt/annmetrics/internal/source/physionet"
)

const version = "1.0"

const (
	exitOK          = 0
	exitFailed      = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := realMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func realMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	for _, a := range args {
		if isHelp(a) {
			printUsage(stdout)
			return exitOK
		}
	}
	for _, a := range args {
		if a == "--version" {
			fmt.Fprintf(stdout, "annmetrics Version %s\n", version)
			return exitOK
		}
	}

	ca, err := parseArgs(args)
	if err != nil {
		return usageError(stderr, err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return exitFailed
	}

	eff, err := config.LoadEffective(cwd, ca)
	if err != nil {
		return usageError(stderr, err)
	}

	// 本地输入目录必须存在；与参数错误同样处理（打印帮助并以 2 退出）。
	if !eff.Remote() {
		fi, err := os.Stat(eff.Dir)
		if err != nil || !fi.IsDir() {
			return usageError(stderr, fmt.Errorf("输入目录不存在：%s", eff.Dir))
		}
	}

	logger, err := newLogger(eff.Verbose)
	if err != nil {
		fmt.Fprintf(stderr, "初始化日志失败：%v\n", err)
		return exitFailed
	}
	defer func() { _ = logger.Sync() }()

	src, err := newSource(eff)
	if err != nil {
		return usageError(stderr, err)
	}

	rr, runErr := run.ExecuteWithObserver(ctx, eff, src, output.Default(), newProgressLog(stdout, logger))

	if eff.Report != "" {
		if err := writeReportFile(eff.Report, rr); err != nil {
			logger.Errorw("写入 report 失败", "path", eff.Report, "error", err)
			if runErr == nil {
				return exitFailed
			}
		} else {
			logger.Debugw("report 已写入", "path", eff.Report)
		}
	}

	if runErr != nil {
		logger.Errorw("运行失败", "run_id", rr.RunID, "error_code", run.Code(runErr), "error", runErr)
		switch run.Code(runErr) {
		case domain.ErrCodeInterrupted:
			return exitInterrupted
		case domain.ErrCodeInputNotFound:
			printUsage(stderr)
			return exitUsage
		default:
			return exitFailed
		}
	}
	return exitOK
}

func usageError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
	printUsage(stderr)
	return exitUsage
}

func newSource(eff config.EffectiveConfig) (source.Source, error) {
	if !eff.Remote() {
		return local.New(eff.Dir, eff.Suffix), nil
	}
	client, err := httpx.NewClient(eff.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("proxy.url 无效：%w", err)
	}
	return physionet.Source{
		BaseURL: eff.PhysioNetBaseURL,
		DB:      eff.PnDir,
		Suffix:  eff.Suffix,
		Client:  client,
		Cache:   cache.New(eff.CacheDir, false),
	}, nil
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func parseArgs(args []string) (config.CLIArgs, error) {
	ca := config.CLIArgs{}

	// value 读取 "--flag VALUE" 或 "--flag=VALUE" 两种形式。
	value := func(i *int, a, name string) (string, error) {
		if v, ok := strings.CutPrefix(a, name+"="); ok {
			if v == "" {
				return "", fmt.Errorf("%s 不能为空", name)
			}
			return v, nil
		}
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}
	is := func(a string, names ...string) (string, bool) {
		for _, n := range names {
			if a == n || strings.HasPrefix(a, n+"=") {
				return n, true
			}
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		var (
			v   string
			err error
		)
		if n, ok := is(a, "-d", "--dir"); ok {
			if ca.Dir != "" {
				return config.CLIArgs{}, fmt.Errorf("重复的 %s", n)
			}
			v, err = value(&i, a, n)
			ca.Dir = v
		} else if n, ok := is(a, "--pn-dir"); ok {
			v, err = value(&i, a, n)
			ca.PnDir = v
		} else if n, ok := is(a, "-o", "--out"); ok {
			v, err = value(&i, a, n)
			ca.Output = v
		} else if n, ok := is(a, "--format"); ok {
			v, err = value(&i, a, n)
			ca.Format = v
		} else if n, ok := is(a, "--report"); ok {
			v, err = value(&i, a, n)
			ca.Report = v
		} else if n, ok := is(a, "--config"); ok {
			v, err = value(&i, a, n)
			ca.ConfigPath = v
		} else if a == "-v" || a == "--verbose" {
			ca.Verbose = true
			ca.VerboseSet = true
		} else if b, ok := strings.CutPrefix(a, "--verbose="); ok {
			switch b {
			case "true":
				ca.Verbose = true
			case "false":
				ca.Verbose = false
			default:
				return config.CLIArgs{}, fmt.Errorf("--verbose 只能是 true 或 false，实际是 %q", b)
			}
			ca.VerboseSet = true
		} else if strings.HasPrefix(a, "-") {
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		} else {
			return config.CLIArgs{}, fmt.Errorf("多余的参数 %q", a)
		}
		if err != nil {
			return config.CLIArgs{}, err
		}
	}

	if ca.Dir != "" && ca.PnDir != "" {
		return config.CLIArgs{}, errors.New("-d/--dir 与 --pn-dir 不能同时使用")
	}
	if ca.Format != "" {
		switch strings.ToLower(ca.Format) {
		case "csv", "parquet":
		default:
			return config.CLIArgs{}, fmt.Errorf("--format 只能是 csv 或 parquet，实际是 %q", ca.Format)
		}
	}
	return ca, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  annmetrics -d DIR -o FILE [-v] [--format csv|parquet] [--report FILE] [--config FILE]
  annmetrics --pn-dir DB -o FILE [...]
  annmetrics --version | -h

把目录中的注释描述文件（默认 *.prf）批量转换为一张指标表：
每个 (记录, 样本偏移) 一行，表头为 "annotation,count,sample offset"。

参数：
  -d, --dir DIR      输入目录（只扫描直接子项，不递归）
      --pn-dir DB    从 PhysioNet 读取（例如 mitdb/1.0.0），与 -d 互斥
  -o, --out FILE     输出文件（已存在则覆盖）
      --format FMT   输出格式：csv|parquet（默认按扩展名推断，否则 csv）
      --report FILE  额外写出一份 JSON 运行报告
      --config FILE  配置文件（JSON/YAML）；默认读取 ./annmetrics.json 或 ./annmetrics.yaml
  -v, --verbose      输出调试日志（不影响结果）
      --version      显示版本
  -h, --help         显示帮助

退出码：0 成功；1 读取/解码/写出失败；2 参数错误或输入目录不存在；130 被中断
`)
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}
