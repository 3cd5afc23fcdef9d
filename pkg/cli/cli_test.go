package cli

import (
	"bytes"
	"context"
	"flag"
	"reflect"
	"strings"
	"testing"
)

func TestParseInterspersed(t *testing.T) {
	tests := []struct {
		args     []string
		want     []string
		duration int
		style    string
	}{
		{[]string{"calm", "piano"}, []string{"calm", "piano"}, 30, "pop"},
		{[]string{"calm piano", "--duration", "10"}, []string{"calm piano"}, 10, "pop"},
		{[]string{"calm", "-style=jazz", "piano", "-duration", "5"}, []string{"calm", "piano"}, 5, "jazz"},
		{[]string{"a", "--", "-b"}, []string{"a", "-b"}, 30, "pop"},
		{[]string{"calm", "-8bit", "chiptune", "--duration", "5"}, []string{"calm", "-8bit", "chiptune"}, 5, "pop"},
		{[]string{"a", "--plot", "b", "-"}, []string{"a", "b", "-"}, 30, "pop"},
		{[]string{"a", "--duration", "-5"}, []string{"a"}, -5, "pop"},
	}
	for _, tt := range tests {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		duration := fs.Int("duration", 30, "")
		style := fs.String("style", "pop", "")
		_ = fs.Bool("plot", false, "")
		got := parseInterspersed(fs, tt.args)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseInterspersed(%q) = %q; want %q", tt.args, got, tt.want)
		}
		if *duration != tt.duration || *style != tt.style {
			t.Errorf("parseInterspersed(%q) flags = %d %q; want %d %q", tt.args, *duration, *style, tt.duration, tt.style)
		}
	}
}

func TestStyles(t *testing.T) {
	var buf bytes.Buffer
	if err := newStylesCommand(&buf).Exec(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 10 {
		t.Fatalf("styles printed %d lines; want 10", len(lines))
	}
	if !strings.HasPrefix(lines[0], "pop ") {
		t.Errorf("first style = %q; want pop", lines[0])
	}
}
