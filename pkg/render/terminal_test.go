package render

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWrapCell(t *testing.T) {
	type tester struct {
		in    string
		wide  bool
		lines int
	}

	cases := map[string]*tester{
		"short stays whole":  {"443/tcp open", false, 1},
		"wide never wraps":   {strings.Repeat("x", 120), true, 1},
		"long ascii wraps":   {strings.Repeat("x", 100), false, 3},
		"exact width whole":  {strings.Repeat("x", cellWidth), false, 1},
		"multibyte banner":   {strings.Repeat("héllo wörld ", 10), false, 3},
		"cjk service banner": {strings.Repeat("网", 90), false, 3},
	}

	for name, c := range cases {
		got := wrapCell(c.in, c.wide)
		lines := strings.Split(got, "\n")

		if len(lines) != c.lines {
			t.Errorf("%s: expected %d lines, got %d", name, c.lines, len(lines))
		}
		for _, line := range lines {
			if !utf8.ValidString(line) {
				t.Errorf("%s: line is not valid UTF-8: %q", name, line)
			}
			if utf8.RuneCountInString(line) > cellWidth {
				t.Errorf("%s: line exceeds cell width: %q", name, line)
			}
		}
		if strings.ReplaceAll(got, "\n", "") != c.in {
			t.Errorf("%s: content altered by wrapping: %q", name, got)
		}
	}
}
