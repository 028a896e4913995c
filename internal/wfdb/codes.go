package wfdb

import "strconv"

const typeNote = 22

// symbols 是 WFDB 标准注释码到助记符的映射（ecgcodes.h）。
var symbols = [codeMax + 1]string{
	0:  " ",
	1:  "N",
	2:  "L",
	3:  "R",
	4:  "a",
	5:  "V",
	6:  "F",
	7:  "J",
	8:  "A",
	9:  "S",
	10: "E",
	11: "j",
	12: "/",
	13: "Q",
	14: "~",
	16: "|",
	18: "s",
	19: "T",
	20: "*",
	21: "D",
	22: "\"",
	23: "=",
	24: "p",
	25: "B",
	26: "^",
	27: "t",
	28: "+",
	29: "u",
	30: "?",
	31: "!",
	32: "[",
	33: "]",
	34: "e",
	35: "n",
	36: "@",
	37: "x",
	38: "f",
	39: "(",
	40: ")",
	41: "r",
}

// SymbolOf 返回注释码 code 的助记符；未定义的码返回 "?"+数字。
func SymbolOf(code int) string {
	if code >= 0 && code <= codeMax && symbols[code] != "" {
		return symbols[code]
	}
	return "?" + strconv.Itoa(code)
}
