package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 已支持的日期版式（名称→layout），斜杠日期因月/日歧义单独处理
var dateLayouts = []struct {
	Name   string
	Layout string
}{
	{"iso_ms_zone", "2006-01-02T15:04:05.000Z07:00"},
	{"iso_zone", "2006-01-02T15:04:05Z07:00"},
	{"iso_time", "2006-01-02T15:04:05"},
	{"iso_date", "2006-01-02"},
	{"long_month", "January 2, 2006"},
	{"long_month_eu", "2 January 2006"},
	{"abbrev_month", "Jan 2, 2006"},
	{"abbrev_compact", "02 Jan 06"},
	{"cjk", "2006年1月2日"},
}

// 斜杠日期的两种解释（月先/日先）
const (
	layoutSlashMonthFirst = "1/2/2006"
	layoutSlashDayFirst   = "2/1/2006"
)

// ParseDate 解析来源站点的日期文本。
// 支持ISO-8601（含/不含时间、毫秒、时区）、英文月名长短格式、
// "02 Jan 06"、"2006年1月2日"，以及斜杠日期（优先月先，
// 仅当首段大于12时按日先解释）。
// 解析失败返回错误——日期不可解析是记录级硬失败，不做静默兜底。
func ParseDate(text string) (time.Time, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("日期文本为空")
	}

	if strings.Contains(s, "/") {
		return parseSlashDate(s)
	}

	for _, l := range dateLayouts {
		if t, err := time.Parse(l.Layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期: %q", text)
}

// parseSlashDate 斜杠日期消歧：首段>12只能是日，按日先；否则按月先
func parseSlashDate(s string) (time.Time, error) {
	parts := strings.SplitN(s, "/", 2)
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日期: %q", s)
	}
	layout := layoutSlashMonthFirst
	if first > 12 {
		layout = layoutSlashDayFirst
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日期: %q", s)
	}
	return t, nil
}

// RenderDate 按指定版式名称渲染日期（测试回环用；斜杠日期按月先渲染）
func RenderDate(layoutName string, t time.Time) (string, error) {
	if layoutName == "slash" {
		return t.Format(layoutSlashMonthFirst), nil
	}
	for _, l := range dateLayouts {
		if l.Name == layoutName {
			return t.Format(l.Layout), nil
		}
	}
	return "", fmt.Errorf("未知日期版式: %s", layoutName)
}

// LayoutNames 全部已支持的版式名称（含斜杠版式）
func LayoutNames() []string {
	names := make([]string, 0, len(dateLayouts)+1)
	for _, l := range dateLayouts {
		names = append(names, l.Name)
	}
	return append(names, "slash")
}
