package dynamic

import (
	"errors"
	"testing"
	"time"
)

func TestCompileLiteralRoundTrip(t *testing.T) {
	for _, src := range []string{
		"",
		"CPU load",
		"just text with } and { braces",
		"温度 0°C",
		"100% done",
	} {
		tmpl, err := Compile(src)
		if err != nil {
			t.Fatalf("Compile(%q): %v", src, err)
		}
		if tmpl.Dynamic() {
			t.Errorf("%q reported dynamic", src)
		}
		if got := tmpl.Static(); got != src {
			t.Errorf("Static(%q) = %q", src, got)
		}
	}
}

func TestCompileSegments(t *testing.T) {
	tests := []struct {
		src  string
		want []segment
	}{
		{
			src: "Vol: {{1000:echo 50}}",
			want: []segment{
				{kind: segLiteral, text: "Vol: "},
				{kind: segPoll, text: "echo 50", interval: time.Second},
			},
		},
		{
			// A colon with a non-numeric prefix belongs to the command.
			src: "{{date +%H:%M}}",
			want: []segment{
				{kind: segWatch, text: "date +%H:%M"},
			},
		},
		{
			src: "{{tail -f /tmp/x}} end",
			want: []segment{
				{kind: segWatch, text: "tail -f /tmp/x"},
				{kind: segLiteral, text: " end"},
			},
		},
		{
			src: "Vol: #volume%",
			want: []segment{
				{kind: segLiteral, text: "Vol: "},
				{kind: segVar, text: "volume"},
				{kind: segLiteral, text: "%"},
			},
		},
		{
			src: "#sysinfo.cpu_percent",
			want: []segment{
				{kind: segVar, text: "sysinfo.cpu_percent"},
			},
		},
		{
			// Escaped hash and a bare trailing hash stay literal.
			src: "a ## b #",
			want: []segment{
				{kind: segLiteral, text: "a # b #"},
			},
		},
		{
			// Interval zero is clamped, not a busy loop.
			src: "{{0:echo x}}",
			want: []segment{
				{kind: segPoll, text: "echo x", interval: minPollInterval},
			},
		},
	}
	for _, tt := range tests {
		tmpl, err := Compile(tt.src)
		if err != nil {
			t.Errorf("Compile(%q): %v", tt.src, err)
			continue
		}
		if len(tmpl.segments) != len(tt.want) {
			t.Errorf("Compile(%q) = %+v, want %+v", tt.src, tmpl.segments, tt.want)
			continue
		}
		for i, seg := range tmpl.segments {
			if seg != tt.want[i] {
				t.Errorf("Compile(%q)[%d] = %+v, want %+v", tt.src, i, seg, tt.want[i])
			}
		}
	}
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{
		"broken {{echo hi",
		"{{",
		"also broken {{1000:date",
		"empty {{}}",
		"blank {{  }}",
		"{{1000:}}",
	} {
		_, err := Compile(src)
		if err == nil {
			t.Errorf("Compile(%q) succeeded", src)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Compile(%q) error %T, want *ParseError", src, err)
		}
	}
}

func TestCompileLenientDegradesToLiteral(t *testing.T) {
	tests := []struct {
		src    string
		static string
	}{
		{"broken {{echo hi", "broken {{echo hi"},
		{"empty {{}} here", "empty {{}} here"},
		{"fine text", "fine text"},
	}
	for _, tt := range tests {
		tmpl := CompileLenient(tt.src)
		if got := tmpl.Static(); got != tt.static {
			t.Errorf("CompileLenient(%q).Static() = %q, want %q", tt.src, got, tt.static)
		}
	}

	// Valid placeholders before the offending one keep working.
	tmpl := CompileLenient("#vol then {{oops")
	if !tmpl.Dynamic() {
		t.Error("lenient compile dropped the valid variable segment")
	}
	if got := tmpl.Static(); got != " then {{oops" {
		t.Errorf("Static() = %q", got)
	}
}

func TestPlaceholdersRespectRuneBoundaries(t *testing.T) {
	tmpl, err := Compile("温度: {{1000:echo 42}}°C #温")
	if err != nil {
		t.Fatal(err)
	}
	// '#' before a multi-byte rune is not a variable reference.
	last := tmpl.segments[len(tmpl.segments)-1]
	if last.kind != segLiteral || last.text != "°C #温" {
		t.Errorf("trailing segment = %+v", last)
	}
}
