package tui

import (
	"strings"
	"testing"
)

func TestMarkdownRendererReusedPerWidth(t *testing.T) {
	r := newMarkdownRenderer()

	out := r.render("# Setup\n\nInstall the tools.", 60)
	if !strings.Contains(out, "Install") {
		t.Errorf("expected rendered body, got %q", out)
	}
	first := r.renderer

	r.render("second prompt", 60)
	if r.renderer != first {
		t.Error("expected renderer reused for the same width")
	}

	r.render("second prompt", 90)
	if r.renderer == first {
		t.Error("expected a new renderer after the width changed")
	}
	if r.width != 88 {
		t.Errorf("expected wrap width 88, got %d", r.width)
	}
}

func TestMarkdownRendererEmptyAndNil(t *testing.T) {
	if got := newMarkdownRenderer().render("  \n", 60); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
	var r *markdownRenderer
	if got := r.render("raw text", 60); got != "raw text" {
		t.Errorf("expected raw fallback, got %q", got)
	}
}
