// Package glrun compiles and displays generated fragment programs on a
// GPU. Driver compile errors are parsed out of the shader info log and
// attributed back to graph nodes through the program's line map.
//
// GPU entry points require CGo; without it they return an error. The
// info-log parsing is pure and available everywhere.
package glrun

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/graphgl/graphgl"
)

// Config configures the display window.
type Config struct {
	Width  int
	Height int
	Title  string
}

func (cfg *Config) defaults() {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 600
	}
	if cfg.Title == "" {
		cfg.Title = "graphgl"
	}
}

// LogEntry is one parsed shader info-log message.
type LogEntry struct {
	// Line is the 1-based fragment-source line the driver attributed the
	// message to, or 0 when the log carried no usable position.
	Line int
	// Msg is the driver's message text.
	Msg string
	// Warning marks non-fatal messages.
	Warning bool
}

// Info-log line shapes of the major driver families:
//
//	ERROR: 0:12: 'foo' : undeclared identifier     (AMD, Apple)
//	0:12(7): error: `foo' undeclared               (Mesa)
//	0(12) : error C1008: undefined variable "foo"  (NVIDIA)
var logPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(ERROR|WARNING):\s*\d+:(\d+):\s*(.+)$`),
	regexp.MustCompile(`^\d+:(\d+)\(\d+\):\s*(error|warning):\s*(.+)$`),
	regexp.MustCompile(`^\d+\((\d+)\)\s*:\s*(error|warning)\b[^:]*:\s*(.+)$`),
}

// ParseInfoLog splits a shader info log into per-line entries. Lines that
// match no known driver format are folded into position-less entries so no
// message is silently dropped.
func ParseInfoLog(infoLog string) []LogEntry {
	var entries []LogEntry
	for _, raw := range strings.Split(infoLog, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		entry := LogEntry{Msg: raw}
		for i, re := range logPatterns {
			m := re.FindStringSubmatch(raw)
			if m == nil {
				continue
			}
			var lineStr, kind, msg string
			if i == 0 {
				kind, lineStr, msg = m[1], m[2], m[3]
			} else {
				lineStr, kind, msg = m[1], m[2], m[3]
			}
			entry.Line, _ = strconv.Atoi(lineStr)
			entry.Msg = msg
			entry.Warning = strings.EqualFold(kind, "warning")
			break
		}
		entries = append(entries, entry)
	}
	return entries
}

// Attribute converts a shader info log into diagnostics attributed to the
// graph nodes whose statements produced the offending lines. Messages
// outside the mapped statement body attach to no node.
func Attribute(r *graphgl.Result, infoLog string) []graphgl.Diagnostic {
	var diags []graphgl.Diagnostic
	for _, e := range ParseInfoLog(infoLog) {
		node := graphgl.NoNode
		if e.Line > 0 {
			if id, ok := r.NodeForLine(e.Line); ok {
				node = id
			}
		}
		sev := graphgl.SeverityError
		if e.Warning {
			sev = graphgl.SeverityWarning
		}
		diags = append(diags, graphgl.Diagnostic{
			Node: node, Code: graphgl.CodeRuntimeCompile,
			Severity: sev, Msg: e.Msg,
		})
	}
	return diags
}
