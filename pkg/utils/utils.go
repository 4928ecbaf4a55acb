package utils

import (
	"strconv"
	"strings"
	"time"
)

// 时间格式化
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// ParseID 解析正整数 ID
func ParseID(s string) (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

// ParseBool 解析可选布尔查询参数，空或无法解析时返回 nil
func ParseBool(s string) *bool {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &v
}

// ParsePage 解析分页参数，非法值回退到默认值
func ParsePage(pageStr, sizeStr string, defaultSize, maxSize int) (int, int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page <= 0 {
		page = 1
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}
