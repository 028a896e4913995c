package source

import (
	"fmt"
	"strings"
)

// HTTPStatusError 表示远程注释库返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d %s location=%s", e.StatusCode, e.URL, loc)
}
