package apiserver

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mercurialworld/pochamoe-api/internal/logx"
	"github.com/mercurialworld/pochamoe-api/internal/modversion"
	"github.com/mercurialworld/pochamoe-api/internal/requestid"
)

type contextFieldSpec struct {
	ctxKey string
	logKey string
}

var accessLogContextFieldSpecs = []contextFieldSpec{
	{ctxKey: modversion.CtxModName, logKey: "mod_name"},
	{ctxKey: modversion.CtxBSVersion, logKey: "bs_version"},
	{ctxKey: modversion.CtxOutcome, logKey: "outcome"},
	{ctxKey: modversion.CtxRejectionKind, logKey: "rejection_kind"},
	{ctxKey: modversion.CtxLocation, logKey: "location"},
}

type accessLogRecord struct {
	RequestID string
	Extras    map[string]any
}

func (r accessLogRecord) Fields() map[string]any {
	out := make(map[string]any, len(r.Extras)+1)
	if strings.TrimSpace(r.RequestID) != "" {
		out["request_id"] = r.RequestID
	}
	for k, v := range r.Extras {
		out[k] = v
	}
	return out
}

func requestLoggerWithColor(l *log.Logger, color bool, requestIDHeaderKey string, accessFormatter *logx.AccessLogFormatter) gin.HandlerFunc {
	requestIDHeaderKey = requestid.ResolveHeaderKey(requestIDHeaderKey)
	if l == nil {
		l = log.New(os.Stdout, "", log.LstdFlags)
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		fields := buildAccessLogRecord(c, requestIDHeaderKey).Fields()

		ts := time.Now()
		if accessFormatter != nil {
			l.Println(accessFormatter.Format(ts, status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
			return
		}
		l.Println(logx.FormatRequestLineWithColor(ts, status, latency, c.ClientIP(), c.Request.Method, c.Request.URL.Path, fields, color))
	}
}

func buildAccessLogRecord(c *gin.Context, requestIDHeaderKey string) accessLogRecord {
	rec := accessLogRecord{
		RequestID: c.GetString(requestIDHeaderKey),
		Extras:    map[string]any{},
	}
	for _, s := range accessLogContextFieldSpecs {
		if v, ok := c.Get(s.ctxKey); ok {
			rec.Extras[s.logKey] = v
		}
	}
	return rec
}
