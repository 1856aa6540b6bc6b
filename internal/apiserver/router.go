package apiserver

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mercurialworld/pochamoe-api/internal/config"
	"github.com/mercurialworld/pochamoe-api/internal/logx"
	"github.com/mercurialworld/pochamoe-api/internal/metrics"
	"github.com/mercurialworld/pochamoe-api/internal/modversion"
	"github.com/mercurialworld/pochamoe-api/internal/requestid"
)

// VersionRoute is the template for the version query.
const VersionRoute = "/v1/version/:mod_name/:bs_version"

// Deps are the collaborators NewRouter wires into routes and middleware.
type Deps struct {
	Handler *modversion.Handler
	// Metrics is optional. When nil, /metrics is not served.
	Metrics *metrics.Metrics

	AccessLogger    *log.Logger
	AccessColor     bool
	AccessFormatter *logx.AccessLogFormatter
}

func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	// Match on the escaped path so %2F stays inside one segment; values are still unescaped.
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(requestid.Middleware(requestid.DefaultHeaderKey))
	if cfg.Logging.AccessLog {
		r.Use(requestLoggerWithColor(deps.AccessLogger, deps.AccessColor, requestid.DefaultHeaderKey, deps.AccessFormatter))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET(cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}
	r.GET(VersionRoute, deps.Handler.ServeHTTP)
	return r
}
