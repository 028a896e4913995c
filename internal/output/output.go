// Package output 把展开后的指标行写成表文件。
package output

import "github.com/John-Robertt/annmetrics/internal/domain"

// 输出表的列名（CSV 表头与 Parquet schema 共用）。
const (
	ColAnnotation = "annotation"
	ColCount      = "count"
	ColSample     = "sample offset"
)

// Writer 把 rows 写到 path（创建或截断），返回写入的字节数。
//
// 约束：
// - 行顺序与输入一致
// - 文件句柄在所有路径上都会关闭
type Writer interface {
	Name() string
	Write(path string, rows []domain.MetricRow) (int64, error)
}
