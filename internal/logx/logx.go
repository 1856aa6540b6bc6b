package logx

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
)

const Prefix = "[POCHAMOE]"

var enableColor = isatty.IsTerminal(os.Stdout.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""

func ColorEnabled() bool { return enableColor }

// Level is the process log threshold.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var level atomic.Int32

func init() {
	level.Store(int32(LevelInfo))
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %q", s)
	}
}

func SetLevel(l Level) { level.Store(int32(l)) }

func DebugEnabled() bool { return Level(level.Load()) <= LevelDebug }

func Debugf(format string, args ...any) {
	if !DebugEnabled() {
		return
	}
	log.Printf(Prefix+" DEBUG "+format, args...)
}

func Infof(format string, args ...any) {
	if Level(level.Load()) > LevelInfo {
		return
	}
	log.Printf(Prefix+" "+format, args...)
}

func Warnf(format string, args ...any) {
	if Level(level.Load()) > LevelWarn {
		return
	}
	warn := "WARNING"
	if enableColor {
		warn = "\x1b[1;33mWARNING\x1b[0m"
	}
	log.Printf(Prefix+" "+warn+" "+format, args...)
}

func Errorf(format string, args ...any) {
	e := "ERROR"
	if enableColor {
		e = "\x1b[1;31mERROR\x1b[0m"
	}
	log.Printf(Prefix+" "+e+" "+format, args...)
}

func ColorizeStatus(status int) string {
	return ColorizeStatusWith(status, enableColor)
}

func ColorizeStatusWith(status int, color bool) string {
	if !color {
		return fmt.Sprintf("%d", status)
	}
	// ANSI colors
	const (
		reset  = "\x1b[0m"
		red    = "\x1b[31m"
		green  = "\x1b[32m"
		yellow = "\x1b[33m"
		cyan   = "\x1b[36m"
	)
	switch {
	case status >= 200 && status < 300:
		return green + fmt.Sprintf("%d", status) + reset
	case status >= 300 && status < 400:
		return cyan + fmt.Sprintf("%d", status) + reset
	case status >= 400 && status < 500:
		return yellow + fmt.Sprintf("%d", status) + reset
	default:
		return red + fmt.Sprintf("%d", status) + reset
	}
}

// FormatRequestLineWithColor prints a single line request log.
//
// Example:
// [POCHAMOE] 2026/01/26 - 17:44:22 | 400 | 85µs | 127.0.0.1 | GET "/v1/version/x/1.2.3" | mod_name=x outcome=invalid
func FormatRequestLineWithColor(
	ts time.Time,
	status int,
	latency time.Duration,
	clientIP string,
	method string,
	path string,
	fields map[string]any,
	color bool,
) string {
	base := fmt.Sprintf(
		`%s %s | %s | %s | %s | %s %q`,
		Prefix,
		ts.Format("2006/01/02 - 15:04:05"),
		ColorizeStatusWith(status, color),
		latency.String(),
		strings.TrimSpace(clientIP),
		strings.TrimSpace(method),
		path,
	)
	extra := formatFields(fields)
	if extra == "" {
		return base
	}
	return base + " | " + extra
}

// request_id leads, the rest follow in key order.
func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "request_id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, ok := fields["request_id"]; ok {
		keys = append([]string{"request_id"}, keys...)
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if s == "" || s == "<nil>" {
			continue
		}
		if strings.ContainsAny(s, " \t\"") {
			s = fmt.Sprintf("%q", s)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, s))
	}
	return strings.Join(parts, " ")
}
