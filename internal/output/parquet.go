package output

import (
	"os"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/John-Robertt/annmetrics/internal/domain"
)

const maxRowGroupLength = 64 * 1024

// Schema 是 Parquet 输出的列定义，与 CSV 表头一致。
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: ColAnnotation, Type: arrow.BinaryTypes.String},
	{Name: ColCount, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColSample, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// Parquet 以 snappy 压缩写出同样三列的 Parquet 文件。
type Parquet struct {
	// Mem 为空时使用 memory.DefaultAllocator。
	Mem memory.Allocator
}

func (Parquet) Name() string { return "parquet" }

func (p Parquet) Write(path string, rows []domain.MetricRow) (int64, error) {
	mem := p.Mem
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	writerProps := parquet.NewWriterProperties(
		parquet.WithMaxRowGroupLength(maxRowGroupLength),
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(mem),
	)
	arrprops := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(mem))

	w, err := pqarrow.NewFileWriter(Schema, f, writerProps, arrprops)
	if err != nil {
		return 0, err
	}

	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	for start := 0; start < len(rows); start += maxRowGroupLength {
		end := min(start+maxRowGroupLength, len(rows))
		if err := writeBatch(w, b, rows[start:end]); err != nil {
			_ = w.Close()
			return 0, err
		}
	}

	// 关闭 writer 会写入 footer 并关闭底层文件。
	if err := w.Close(); err != nil {
		return 0, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func writeBatch(w *pqarrow.FileWriter, b *array.RecordBuilder, rows []domain.MetricRow) error {
	names := b.Field(0).(*array.StringBuilder)
	counts := b.Field(1).(*array.Int64Builder)
	samples := b.Field(2).(*array.Int64Builder)

	names.Reserve(len(rows))
	counts.Reserve(len(rows))
	samples.Reserve(len(rows))
	for _, r := range rows {
		names.Append(r.RecordName)
		counts.Append(int64(r.Count))
		samples.Append(r.Sample)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.Write(rec)
}

var _ Writer = Parquet{}
