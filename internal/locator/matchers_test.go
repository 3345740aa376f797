package locator

import "testing"

func TestSplitLineSuffix(t *testing.T) {
	tests := []struct {
		in       string
		wantPath string
		wantLine string
	}{
		{"a.go", "a.go", "0"},
		{"a.go:12", "a.go", "12"},
		{"a.go:", "a.go:", "0"},
		{"a.go:x1", "a.go:x1", "0"},
		{"a.go:000", "a.go", "0"},
		{":7", ":7", "0"},
		{"dir:v2/a.go:3", "dir:v2/a.go", "3"},
	}
	for _, tt := range tests {
		p, line := splitLineSuffix(tt.in)
		if p != tt.wantPath || line != tt.wantLine {
			t.Errorf("splitLineSuffix(%q) = (%q, %q), want (%q, %q)", tt.in, p, line, tt.wantPath, tt.wantLine)
		}
	}
}

func TestFigmaNodeID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"1:2", "1:2", true},
		{"1-2", "1:2", true},
		{"1%3A2", "1:2", true},
		{" 3-4 ", "3:4", true},
		{"1:2:3", "", false},
		{"-1-2", "", false},
		{"1:", "", false},
		{"", "", false},
		{"%zz", "", false},
	}
	for _, tt := range tests {
		got, ok := figmaNodeID(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("figmaNodeID(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFigmaFileKey(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"/design/ABC/Name", "ABC", true},
		{"//file//XYZ", "XYZ", true},
		{"/proto/ABC", "", false},
		{"/design", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := figmaFileKey(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("figmaFileKey(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNotionPageID(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"none", "hello world", "", false},
		{"single", "x-0123456789ABCDEF0123456789abcdef", "0123456789abcdef0123456789abcdef", true},
		{"embedded in longer hex run", "0123456789abcdef0123456789abcdef99", "", false},
		{"bare then bare", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa/bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", true},
		{"uuid then bare", "12345678-1234-1234-1234-123456789abc?v=cccccccccccccccccccccccccccccccc", "cccccccccccccccccccccccccccccccc", true},
		{"bare then uuid", "cccccccccccccccccccccccccccccccc#12345678-1234-1234-1234-123456789abc", "12345678123412341234123456789abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := notionPageID(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("notionPageID(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
