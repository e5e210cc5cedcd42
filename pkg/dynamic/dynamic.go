// Package dynamic compiles and renders dynamic strings: format strings
// with embedded script and variable placeholders that re-render live.
//
// Syntax inside any label-capable field:
//
//	{{1000:date +%H:%M}}   poll script, interval in milliseconds
//	{{tail -f /tmp/log}}   watch script, one value per stdout line
//	#volume                ironvar reference
//	##                     literal '#'
//
// The interval prefix is taken only when everything before the first
// colon is digits; otherwise the colon belongs to the command.
package dynamic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseError reports a malformed template at compile time.
type ParseError struct {
	Template string
	Offset   int
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at %d: %s", e.Template, e.Offset, e.Msg)
}

type segKind int

const (
	segLiteral segKind = iota
	segPoll
	segWatch
	segVar
)

type segment struct {
	kind segKind
	// text is literal text, the script command, or the variable name
	// depending on kind.
	text     string
	interval time.Duration
}

// Template is a compiled dynamic string. Segment order is fixed at
// compile time; rendering joins all segments in order.
type Template struct {
	source   string
	segments []segment
}

// Compile parses a template. Unterminated or empty placeholders fail
// with a ParseError.
func Compile(template string) (*Template, error) {
	segs, err := parse(template, false)
	if err != nil {
		return nil, err
	}
	return &Template{source: template, segments: segs}, nil
}

// CompileLenient never fails: placeholders that do not parse stay in
// the output as literal text. Templates assembled at runtime from
// script or variable content go through here so bad content degrades
// instead of erroring.
func CompileLenient(template string) *Template {
	segs, _ := parse(template, true)
	return &Template{source: template, segments: segs}
}

// Source returns the original template text.
func (t *Template) Source() string { return t.source }

// Dynamic reports whether any segment needs live evaluation.
func (t *Template) Dynamic() bool {
	for _, s := range t.segments {
		if s.kind != segLiteral {
			return true
		}
	}
	return false
}

// Static renders the template with every dynamic segment in its
// unevaluated (empty) state. A template without placeholders renders
// to its literal text.
func (t *Template) Static() string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.kind == segLiteral {
			b.WriteString(s.text)
		}
	}
	return b.String()
}

// minPollInterval guards against busy-looping on "{{0:cmd}}".
const minPollInterval = 100 * time.Millisecond

func parse(src string, lenient bool) ([]segment, error) {
	var segs []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{kind: segLiteral, text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(src) {
		if strings.HasPrefix(src[i:], "{{") {
			end := strings.Index(src[i+2:], "}}")
			if end < 0 {
				if lenient {
					lit.WriteString(src[i:])
					break
				}
				return nil, &ParseError{Template: src, Offset: i, Msg: "unterminated '{{'"}
			}
			body := src[i+2 : i+2+end]
			seg, ok := scriptSegment(body)
			if !ok {
				if lenient {
					lit.WriteString(src[i : i+2+end+2])
					i += end + 4
					continue
				}
				return nil, &ParseError{Template: src, Offset: i, Msg: "empty placeholder"}
			}
			flush()
			segs = append(segs, seg)
			i += end + 4
			continue
		}
		if src[i] == '#' {
			if i+1 < len(src) && src[i+1] == '#' {
				lit.WriteByte('#')
				i += 2
				continue
			}
			j := i + 1
			for j < len(src) && isNameByte(src[j]) {
				j++
			}
			if j > i+1 {
				flush()
				segs = append(segs, segment{kind: segVar, text: src[i+1 : j]})
				i = j
				continue
			}
			lit.WriteByte('#')
			i++
			continue
		}
		// Delimiters are all ASCII, so copying byte-wise never splits a
		// multi-byte rune across segments.
		lit.WriteByte(src[i])
		i++
	}
	flush()
	return segs, nil
}

func scriptSegment(body string) (segment, bool) {
	if strings.TrimSpace(body) == "" {
		return segment{}, false
	}
	if c := strings.IndexByte(body, ':'); c > 0 && allDigits(body[:c]) {
		cmd := body[c+1:]
		if strings.TrimSpace(cmd) == "" {
			return segment{}, false
		}
		ms, _ := strconv.Atoi(body[:c])
		interval := time.Duration(ms) * time.Millisecond
		if interval < minPollInterval {
			interval = minPollInterval
		}
		return segment{kind: segPoll, text: cmd, interval: interval}, true
	}
	return segment{kind: segWatch, text: body}, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isNameByte matches the ironvar name charset. Multi-byte runes never
// match, so '#' followed by non-ASCII stays literal.
func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' || b == '_' || b == '.' || b == '-'
}
