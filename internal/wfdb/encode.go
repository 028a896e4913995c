package wfdb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Encode 把 anns 以 MIT 格式写入 w（以 0x0000 EOF 字结尾）。
//
// 约束：anns 必须按 Sample 非递减排列；Type 必须在 [0, 49]；aux 最长 255 字节。
// 间隔超出 10 位时使用 SKIP。
func Encode(w io.Writer, anns []Annotation) error {
	bw := bufio.NewWriter(w)

	var (
		prev    int64
		prevChn int
		prevNum int
	)
	for idx, a := range anns {
		if a.Type < 0 || a.Type > codeMax {
			return fmt.Errorf("wfdb: annotation %d: invalid type %d", idx, a.Type)
		}
		if a.Sample < prev {
			return fmt.Errorf("wfdb: annotation %d: sample %d before %d", idx, a.Sample, prev)
		}
		if len(a.Aux) > 255 {
			return fmt.Errorf("wfdb: annotation %d: aux too long (%d)", idx, len(a.Aux))
		}

		delta := a.Sample - prev
		if a.Type == 0 && delta == 0 {
			// 0x0000 是 EOF：类型 0 且间隔 0 的注释无法直接表示。
			return fmt.Errorf("wfdb: annotation %d: type 0 with zero interval is not encodable", idx)
		}
		if delta > 0x3ff {
			if delta > 0x7fffffff {
				return fmt.Errorf("wfdb: annotation %d: interval %d overflows", idx, delta)
			}
			// 类型 0 至少保留 1 的间隔，避免注释字变成 EOF。
			var keep int64
			if a.Type == 0 {
				keep = 1
			}
			d := uint32(delta - keep)
			if err := writeWords(bw, uint16(codeSkip<<10), uint16(d>>16), uint16(d)); err != nil {
				return err
			}
			delta = keep
		}
		if err := writeWords(bw, uint16(a.Type<<10)|uint16(delta)); err != nil {
			return err
		}

		if a.Sub != 0 {
			if err := writeWords(bw, uint16(codeSub<<10)|uint16(a.Sub&0xff)); err != nil {
				return err
			}
		}
		if a.Chan != prevChn {
			if err := writeWords(bw, uint16(codeChn<<10)|uint16(a.Chan&0x3ff)); err != nil {
				return err
			}
			prevChn = a.Chan
		}
		if a.Num != prevNum {
			if err := writeWords(bw, uint16(codeNum<<10)|uint16(a.Num&0xff)); err != nil {
				return err
			}
			prevNum = a.Num
		}
		if a.Aux != "" {
			n := len(a.Aux)
			if err := writeWords(bw, uint16(codeAux<<10)|uint16(n)); err != nil {
				return err
			}
			buf := make([]byte, n+n%2)
			copy(buf, a.Aux)
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		prev = a.Sample
	}

	if err := writeWords(bw, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func writeWords(w io.Writer, words ...uint16) error {
	var b [2]byte
	for _, x := range words {
		binary.LittleEndian.PutUint16(b[:], x)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}
