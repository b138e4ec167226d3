package markdown

import (
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Just some text.", "Just some text."},
		{"emphasis", "The *first* emperor of **Rome**.", "The first emperor of Rome."},
		{"link", "Adopted by [Caesar](caesar.md).", "Adopted by Caesar."},
		{"code span", "Known as `Octavian`.", "Known as Octavian."},
		{"paragraphs", "One.\n\nTwo.", "One. Two."},
		{"soft break", "line one\nline two", "line one line two"},
		{"heading and list", "# Livia\n\n- wife\n- mother", "Livia wife mother"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.body); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		body string
		max  int
		want string
	}{
		{"short", "A *short* note", 40, "A short note"},
		{"cut", "An epistolary life of the first emperor", 12, "An epistola…"},
		{"cut at space", "Wife of Octavius", 6, "Wife…"},
		{"unicode", "奥古斯都人物信息", 4, "奥古斯…"},
		{"no limit", "keep everything", 0, "keep everything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.body, tt.max); got != tt.want {
				t.Errorf("Summary(%q, %d) = %q, want %q", tt.body, tt.max, got, tt.want)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"# Augustus\n\nBody", "Augustus"},
		{"## Sub\n\n# The *Real* Title", "The Real Title"},
		{"No heading here", ""},
	}
	for _, tt := range tests {
		if got := Title(tt.body); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	out, err := Render("Wife of **Octavius**", 40, "notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "Octavius") {
		t.Errorf("Render output missing text: %q", out)
	}
}
