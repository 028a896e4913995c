// Package metrics 把解码后的注释记录展开为输出表的行。
package metrics

import "github.com/John-Robertt/annmetrics/internal/domain"

// Flatten 按记录顺序、样本顺序展开：每个样本一行，Count 为该记录的样本总数。
// 没有样本的记录不产生任何行。纯函数。
func Flatten(records []domain.AnnotationRecord) []domain.MetricRow {
	rows := make([]domain.MetricRow, 0, RowCount(records))
	for _, r := range records {
		n := r.Count()
		for _, s := range r.Samples {
			rows = append(rows, domain.MetricRow{RecordName: r.RecordName, Count: n, Sample: s})
		}
	}
	return rows
}

// RowCount 返回 Flatten 会产生的行数。
func RowCount(records []domain.AnnotationRecord) int {
	n := 0
	for _, r := range records {
		n += r.Count()
	}
	return n
}
