package extract

import (
	"testing"
	"time"
)

func TestParseDateRoundTripAllLayouts(t *testing.T) {
	want := time.Date(2026, 2, 1, 15, 4, 5, 0, time.UTC)
	for _, name := range LayoutNames() {
		text, err := RenderDate(name, want)
		if err != nil {
			t.Fatalf("RenderDate(%s): %v", name, err)
		}
		got, err := ParseDate(text)
		if err != nil {
			t.Errorf("ParseDate(%s, %q): %v", name, text, err)
			continue
		}
		gy, gm, gd := got.Date()
		wy, wm, wd := want.Date()
		if gy != wy || gm != wm || gd != wd {
			t.Errorf("版式%s回环失败: %q → %v", name, text, got)
		}
	}
}

func TestParseDateSlashDisambiguation(t *testing.T) {
	cases := []struct {
		in          string
		month, day  int
	}{
		{"04/05/2026", 4, 5},   // 首段≤12按月先
		{"25/12/2026", 12, 25}, // 首段>12只能是日
		{"12/25/2026", 12, 25},
		{"1/2/2026", 1, 2},
	}
	for _, c := range cases {
		got, err := ParseDate(c.in)
		if err != nil {
			t.Errorf("ParseDate(%q): %v", c.in, err)
			continue
		}
		if int(got.Month()) != c.month || got.Day() != c.day {
			t.Errorf("ParseDate(%q) = %v，期望 %d月%d日", c.in, got, c.month, c.day)
		}
	}
}

func TestParseDateCJK(t *testing.T) {
	got, err := ParseDate("2026年2月1日")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.February || got.Day() != 1 {
		t.Errorf("ParseDate = %v", got)
	}
}

func TestParseDateRejectsUnparseable(t *testing.T) {
	for _, in := range []string{"", "   ", "next Tuesday", "2026-13-40", "soon™", "31/31/2026"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) 应返回错误", in)
		}
	}
}
