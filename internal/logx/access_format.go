package logx

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

var accessLogFormatPresets = map[string]string{
	"pochamoe_combined": "$time_local | $status | $latency | $client_ip | $method $path | request_id=$request_id mod_name=$mod_name bs_version=$bs_version outcome=$outcome rejection_kind=$rejection_kind location=$location",
	"pochamoe_minimal":  "$time_local | $status | $method $path | request_id=$request_id outcome=$outcome",
}

// Request-scoped vars come from Format's arguments, the rest from fields.
var accessLogVars = map[string]bool{
	"time_local":     true,
	"status":         true,
	"latency":        true,
	"latency_ms":     true,
	"client_ip":      true,
	"method":         true,
	"path":           true,
	"request_id":     false,
	"mod_name":       false,
	"bs_version":     false,
	"outcome":        false,
	"rejection_kind": false,
	"location":       false,
}

// ResolveAccessLogFormat picks an explicit format over a preset name.
func ResolveAccessLogFormat(format string, preset string) (string, error) {
	if strings.TrimSpace(format) != "" {
		return format, nil
	}
	p := strings.ToLower(strings.TrimSpace(preset))
	if p == "" {
		return "", nil
	}
	out, ok := accessLogFormatPresets[p]
	if !ok {
		return "", fmt.Errorf("invalid access_log_format_preset: %q", preset)
	}
	return out, nil
}

type formatPart struct {
	literal string
	varName string
}

// AccessLogFormatter renders an nginx-like "$var" template. A nil formatter
// renders nothing.
type AccessLogFormatter struct {
	parts []formatPart
}

func CompileAccessLogFormat(format string) (*AccessLogFormatter, error) {
	if strings.TrimSpace(format) == "" {
		return nil, nil
	}
	var (
		parts []formatPart
		lit   strings.Builder
	)
	for i := 0; i < len(format); i++ {
		if format[i] != '$' {
			lit.WriteByte(format[i])
			continue
		}
		if i+1 < len(format) && format[i+1] == '$' {
			lit.WriteByte('$')
			i++
			continue
		}
		j := i + 1
		for j < len(format) && isVarByte(format[j]) {
			j++
		}
		if j == i+1 {
			return nil, fmt.Errorf("invalid access_log_format: missing variable name after '$' at pos %d", i)
		}
		name := format[i+1 : j]
		if _, ok := accessLogVars[name]; !ok {
			return nil, fmt.Errorf("invalid access_log_format: unknown variable $%s", name)
		}
		if lit.Len() > 0 {
			parts = append(parts, formatPart{literal: lit.String()})
			lit.Reset()
		}
		parts = append(parts, formatPart{varName: name})
		i = j - 1
	}
	if lit.Len() > 0 {
		parts = append(parts, formatPart{literal: lit.String()})
	}
	return &AccessLogFormatter{parts: parts}, nil
}

func isVarByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (f *AccessLogFormatter) Format(
	ts time.Time,
	status int,
	latency time.Duration,
	clientIP string,
	method string,
	path string,
	fields map[string]any,
	color bool,
) string {
	if f == nil || len(f.parts) == 0 {
		return ""
	}
	vars := map[string]string{
		"time_local": ts.Format("2006/01/02 - 15:04:05"),
		"status":     ColorizeStatusWith(status, color),
		"latency":    latency.String(),
		"latency_ms": fmt.Sprintf("%d", latency.Milliseconds()),
		"client_ip":  clientIP,
		"method":     method,
		"path":       path,
	}
	for k, v := range fields {
		if builtin, known := accessLogVars[k]; known && builtin {
			continue
		}
		if v == nil {
			continue
		}
		vars[k] = fmt.Sprintf("%v", v)
	}

	var b strings.Builder
	for _, p := range f.parts {
		if p.varName == "" {
			b.WriteString(p.literal)
			continue
		}
		v := strings.TrimSpace(vars[p.varName])
		if v == "" {
			v = "-"
		}
		b.WriteString(v)
	}
	return b.String()
}

func AccessLogAllowedVars() []string {
	keys := make([]string, 0, len(accessLogVars))
	for k := range accessLogVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
