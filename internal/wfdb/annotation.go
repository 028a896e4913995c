// Package wfdb 解码 WFDB（MIT 格式）注释文件。
//
// 只解析注释流本身（样本时间、类型、subtyp/chan/num/aux），不读取任何信号数据。
package wfdb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MIT 格式中的伪注释码（位于 16 位字的高 6 位）。
const (
	codeMax  = 49 // 最大的真实注释类型
	codeSkip = 59 // 下两个字是 32 位（PDP-11 字序）的时间跳跃
	codeNum  = 60 // I 字段写入当前注释的 num
	codeSub  = 61 // I 字段写入当前注释的 subtyp
	codeChn  = 62 // I 字段写入当前注释的 chan
	codeAux  = 63 // I 字段是 aux 字节数，随后是 aux 内容（补齐到偶数）
)

var (
	// ErrTruncated 表示注释流在一个结构中途结束（缺少 EOF 字也算正常结束，不算截断）。
	ErrTruncated = errors.New("wfdb: truncated annotation stream")
	// ErrNegativeSample 表示时间跳跃使样本位置小于 0。
	ErrNegativeSample = errors.New("wfdb: negative sample position")
	// ErrUnexpectedModifier 表示 SUB/AUX 修饰字出现在第一条注释之前。
	ErrUnexpectedModifier = errors.New("wfdb: modifier before first annotation")
)

// Annotation 是一条解码后的注释。
type Annotation struct {
	Sample int64
	Type   int
	Sub    int
	Chan   int
	Num    int
	Aux    string
}

// Symbol 返回注释类型的助记符；未定义的类型返回 "?"+数字。
func (a Annotation) Symbol() string { return SymbolOf(a.Type) }

// Decode 从 r 读取完整的 MIT 格式注释流。
//
// 规则：
// - 0x0000 字为 EOF；流在字边界上自然结束也视为 EOF
// - SKIP 只累加时间，不产生注释
// - chan/num 在后续注释间保持（与 WFDB 库一致），subtyp/aux 只作用于当前注释
// - 文件头部的 "## " aux 说明注释（如 time resolution）会被剔除
func Decode(r io.Reader) ([]Annotation, error) {
	br := bufio.NewReader(r)

	var (
		out    = make([]Annotation, 0, 256)
		sample int64
		chn    int
		num    int
	)

	for {
		w, err := readWord(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		a := int(w >> 10)
		i := int(w & 0x3ff)

		if a == 0 && i == 0 {
			break
		}

		switch {
		case a == codeSkip:
			hi, err := readWord(br)
			if err != nil {
				return nil, truncated(err)
			}
			lo, err := readWord(br)
			if err != nil {
				return nil, truncated(err)
			}
			sample += int64(int32(uint32(hi)<<16 | uint32(lo)))
			if sample < 0 {
				return nil, fmt.Errorf("%w: %d", ErrNegativeSample, sample)
			}
		case a == codeNum:
			if len(out) == 0 {
				// WFDB 允许在首条注释前设置 num 初值。
				num = signedByte(i)
				continue
			}
			num = signedByte(i)
			out[len(out)-1].Num = num
		case a == codeSub:
			if len(out) == 0 {
				return nil, ErrUnexpectedModifier
			}
			out[len(out)-1].Sub = signedByte(i)
		case a == codeChn:
			if len(out) == 0 {
				chn = i
				continue
			}
			chn = i
			out[len(out)-1].Chan = chn
		case a == codeAux:
			buf := make([]byte, i+i%2)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, truncated(err)
			}
			if len(out) == 0 {
				return nil, ErrUnexpectedModifier
			}
			out[len(out)-1].Aux = strings.TrimRight(string(buf[:i]), "\x00")
		case a <= codeMax:
			sample += int64(i)
			out = append(out, Annotation{
				Sample: sample,
				Type:   a,
				Chan:   chn,
				Num:    num,
			})
		default:
			// 50..58 为保留码：按 WFDB 的做法忽略其 I 字段。
		}
	}

	return dropHeaderNotes(out), nil
}

// dropHeaderNotes 剔除位于流首部、样本 0 且 aux 以 "## " 开头的说明注释。
func dropHeaderNotes(in []Annotation) []Annotation {
	k := 0
	for k < len(in) && in[k].Sample == 0 && (in[k].Type == 0 || in[k].Type == typeNote) && strings.HasPrefix(in[k].Aux, "## ") {
		k++
	}
	return in[k:]
}

func readWord(br *bufio.Reader) (uint16, error) {
	var b [2]byte
	n, err := io.ReadFull(br, b[:])
	if err != nil {
		if n == 1 {
			return 0, ErrTruncated
		}
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

// signedByte 把 I 字段中的 subtyp/num 解释为有符号 8 位值（WFDB 约定）。
func signedByte(i int) int {
	v := i & 0xff
	if v > 127 {
		v -= 256
	}
	return v
}
