package output

import (
	"bufio"
	"os"
	"strconv"

	"github.com/John-Robertt/annmetrics/internal/domain"
)

// CSV 写出 UTF-8 的 "annotation,count,sample offset" 表。
// 字段不加引号也不转义，整数为十进制，每行以 '\n' 结尾。
type CSV struct{}

func (CSV) Name() string { return "csv" }

func (CSV) Write(path string, rows []domain.MetricRow) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cw := &countingWriter{w: bufio.NewWriterSize(f, 64*1024)}
	if _, err := cw.WriteString(ColAnnotation + "," + ColCount + "," + ColSample + "\n"); err != nil {
		return cw.n, err
	}

	line := make([]byte, 0, 64)
	for _, r := range rows {
		line = line[:0]
		line = append(line, r.RecordName...)
		line = append(line, ',')
		line = strconv.AppendInt(line, int64(r.Count), 10)
		line = append(line, ',')
		line = strconv.AppendInt(line, r.Sample, 10)
		line = append(line, '\n')
		if _, err := cw.Write(line); err != nil {
			return cw.n, err
		}
	}

	if err := cw.w.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, f.Close()
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (c *countingWriter) WriteString(s string) (int, error) {
	n, err := c.w.WriteString(s)
	c.n += int64(n)
	return n, err
}

var _ Writer = CSV{}
