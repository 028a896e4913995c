package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEffective_CLIOnlyDefaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Dir: "data", Output: "out.csv"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dir != filepath.Join(cwd, "data") || eff.Output != filepath.Join(cwd, "out.csv") {
		t.Fatalf("路径未按 cwd 解析：dir=%q output=%q", eff.Dir, eff.Output)
	}
	if eff.Annotator != "prf" || eff.Suffix != ".prf" || eff.Format != "csv" {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.PhysioNetBaseURL != DefaultPhysioNetBaseURL {
		t.Fatalf("期望默认 physionet_base_url，实际 %q", eff.PhysioNetBaseURL)
	}
	if eff.ConfigPath != "" || eff.Remote() {
		t.Fatalf("不期望读取配置文件或远程输入：%+v", eff)
	}
}

func TestLoadEffective_MissingInputAndOutput(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{Output: "out.csv"})
	if Code(err) != ErrCodeMissingInput || !IsUsage(err) {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingInput, err, Code(err))
	}

	_, err = LoadEffective(cwd, CLIArgs{Dir: "d"})
	if Code(err) != ErrCodeMissingOutput || !IsUsage(err) {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingOutput, err, Code(err))
	}
}

func TestLoadEffective_YAMLFileAndCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "annmetrics.yaml"), []byte(`
dir: records
output: table.parquet
annotator: atr
verbose: true
cache_dir: ""
proxy:
  url: http://127.0.0.1:8080
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dir != filepath.Join(cwd, "records") {
		t.Fatalf("期望 dir 相对配置文件解析，实际 %q", eff.Dir)
	}
	if eff.Format != "parquet" {
		t.Fatalf("期望由扩展名推断 parquet，实际 %q", eff.Format)
	}
	if eff.Annotator != "atr" || eff.Suffix != ".atr" {
		t.Fatalf("annotator/suffix 不符合预期：%q %q", eff.Annotator, eff.Suffix)
	}
	if !eff.Verbose || eff.CacheDir != "" || eff.ProxyURL != "http://127.0.0.1:8080" {
		t.Fatalf("配置文件字段未生效：%+v", eff)
	}

	// CLI 显式指定则覆盖配置文件。
	eff2, err := LoadEffective(cwd, CLIArgs{
		PnDir:      "/mitdb/1.0.0/",
		Output:     "x.csv",
		Format:     "CSV",
		Verbose:    false,
		VerboseSet: true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Dir != "" || eff2.PnDir != "mitdb/1.0.0" || !eff2.Remote() {
		t.Fatalf("CLI 输入应完全覆盖配置文件输入：%+v", eff2)
	}
	if eff2.Format != "csv" || eff2.Verbose {
		t.Fatalf("CLI format/verbose 未生效：%+v", eff2)
	}
}

func TestLoadEffective_JSONPreferredOverYAML(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "annmetrics.json"), []byte(`{"dir":"from-json","output":"o.csv"}`))
	writeFile(t, filepath.Join(cwd, "annmetrics.yaml"), []byte("dir: from-yaml\noutput: o.csv\n"))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if filepath.Base(eff.Dir) != "from-json" {
		t.Fatalf("期望使用 annmetrics.json，实际 dir=%q", eff.Dir)
	}
}

func TestLoadEffective_ExplicitConfig(t *testing.T) {
	cwd := t.TempDir()
	cfgDir := filepath.Join(cwd, "conf")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(cfgDir, "run.yml"), []byte("dir: in\noutput: out.csv\nreport: report.json\n"))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "conf/run.yml"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dir != filepath.Join(cfgDir, "in") || eff.Report != filepath.Join(cfgDir, "report.json") {
		t.Fatalf("配置文件路径应相对配置文件目录：%+v", eff)
	}

	_, err = LoadEffective(cwd, CLIArgs{ConfigPath: "nope.json"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"broken json":    `{`,
		"both inputs":    `{"dir":"d","pn_dir":"mitdb","output":"o.csv"}`,
		"bad format":     `{"dir":"d","output":"o.csv","format":"xlsx"}`,
		"bad annotator":  `{"dir":"d","output":"o.csv","annotator":"a.b"}`,
		"bad proxy":      `{"dir":"d","output":"o.csv","proxy":{"url":"http://[::1"}}`,
		"proxy scheme":   `{"dir":"d","output":"o.csv","proxy":{"url":"127.0.0.1:8080"}}`,
		"bad base url":   `{"dir":"d","output":"o.csv","physionet_base_url":"ftp://x/"}`,
		"pn_dir escapes": `{"pn_dir":"mitdb/../..","output":"o.csv"}`,
	}
	for name, body := range cases {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, "annmetrics.json"), []byte(body))

		_, err := LoadEffective(cwd, CLIArgs{})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 %q，实际 err=%v (code=%q)", name, ErrCodeInvalid, err, Code(err))
		}
	}
}

func TestLoadEffective_CLIBothInputs(t *testing.T) {
	_, err := LoadEffective(t.TempDir(), CLIArgs{Dir: "d", PnDir: "mitdb", Output: "o.csv"})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
