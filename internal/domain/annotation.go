package domain

import "path/filepath"

// DefaultAnnotator 是默认的注释器名（同时也是描述文件后缀，不含 '.'）。
const DefaultAnnotator = "prf"

// RecordID 是一条记录的标识：描述文件路径去掉后缀。
// 本地源为绝对/相对文件路径；远程源为库内相对名（始终使用 '/' 分隔）。
type RecordID string

// Name 返回记录名（RecordID 的基名）。
func (id RecordID) Name() string {
	return filepath.Base(string(id))
}

// AnnotationDescriptor 描述一次扫描得到的注释描述文件（只做 stat/列目录，不读内容）。
//
// 不变量：同一次扫描结果中 ID 唯一。
type AnnotationDescriptor struct {
	ID         RecordID
	SourcePath string
}

// AnnotationRecord 是解码后的注释记录。
//
// 不变量：
// - Samples 保持源文件中的出现顺序，不做重排
// - Samples 中每个值 >= 0
// - Symbols 与 Samples 等长且一一对应（注释类型助记符）
type AnnotationRecord struct {
	RecordName string
	Annotator  string
	Samples    []int64
	Symbols    []string
}

// Count 返回该记录的注释数量。
func (r AnnotationRecord) Count() int { return len(r.Samples) }

// MetricRow 是输出表的一行：每个 (记录, 样本偏移) 一行。
// 同一记录的所有行 Count 相同。
type MetricRow struct {
	RecordName string
	Count      int
	Sample     int64
}
