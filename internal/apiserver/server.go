package apiserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mercurialworld/pochamoe-api/internal/config"
	"github.com/mercurialworld/pochamoe-api/internal/logx"
	"github.com/mercurialworld/pochamoe-api/internal/metrics"
	"github.com/mercurialworld/pochamoe-api/internal/modregistry"
	"github.com/mercurialworld/pochamoe-api/internal/modversion"
	"github.com/mercurialworld/pochamoe-api/internal/version"
)

type Server struct {
	cfg     *config.Config
	mods    *modregistry.AllowList
	metrics *metrics.Metrics
	engine  *gin.Engine

	accessClose io.Closer
}

// NewVersionHandler builds the version pipeline from cfg. m may be nil.
func NewVersionHandler(cfg *config.Config, m *metrics.Metrics) (*modversion.Handler, *modregistry.AllowList, error) {
	mode, err := modversion.ParseVersionMode(cfg.Versions.Pattern)
	if err != nil {
		return nil, nil, err
	}
	mods := modregistry.NewAllowList(cfg.Mods.Allow...)
	if strings.TrimSpace(cfg.Mods.File) != "" {
		if _, err := mods.ReloadFile(cfg.Mods.File); err != nil {
			return nil, nil, fmt.Errorf("load mods file %q: %w", cfg.Mods.File, err)
		}
	}
	v, err := modversion.NewValidator(mods, mode)
	if err != nil {
		return nil, nil, err
	}
	h := &modversion.Handler{
		Validator: v,
		Resolver:  modversion.StaticResolver{Answer: cfg.Versions.Answer},
	}
	if m != nil {
		h.Metrics = m
	}
	return h, mods, nil
}

func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	h, mods, err := NewVersionHandler(cfg, m)
	if err != nil {
		return nil, err
	}

	accessFormat, err := logx.ResolveAccessLogFormat(cfg.Logging.AccessLogFormat, cfg.Logging.AccessLogFormatPreset)
	if err != nil {
		return nil, fmt.Errorf("resolve access log format: %w", err)
	}
	accessFormatter, err := logx.CompileAccessLogFormat(accessFormat)
	if err != nil {
		return nil, fmt.Errorf("compile access_log_format: %w", err)
	}
	accessLogger, accessClose, accessColor, err := openAccessLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init access log: %w", err)
	}

	engine := NewRouter(cfg, Deps{
		Handler:         h,
		Metrics:         m,
		AccessLogger:    accessLogger,
		AccessColor:     accessColor,
		AccessFormatter: accessFormatter,
	})
	return &Server{
		cfg:         cfg,
		mods:        mods,
		metrics:     m,
		engine:      engine,
		accessClose: accessClose,
	}, nil
}

func (s *Server) Mods() *modregistry.AllowList { return s.mods }

// Handler is the root handler, wrapped for cleartext HTTP/2 when server.h2c
// is set.
func (s *Server) Handler() http.Handler {
	if s.cfg.Server.H2C {
		return h2c.NewHandler(s.engine, &http2.Server{})
	}
	return s.engine
}

// Close releases the access log file, if any.
func (s *Server) Close() error {
	if s.accessClose == nil {
		return nil
	}
	return s.accessClose.Close()
}

// Serve accepts on ln until ctx is done, then drains in-flight requests for
// at most server.shutdown_timeout_ms.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	readTimeout := time.Duration(s.cfg.Server.ReadTimeoutMs) * time.Millisecond
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      time.Duration(s.cfg.Server.WriteTimeoutMs) * time.Millisecond,
		IdleTimeout:       time.Duration(s.cfg.Server.IdleTimeoutMs) * time.Millisecond,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Printf("pochamoe stopped")
	return nil
}

// Run writes the pid file, installs reload hooks and serves on
// server.listen until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	pidCleanup, err := writePIDFile(s.cfg.Server.PidFile)
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	if pidCleanup != nil {
		defer func() { _ = pidCleanup.Close() }()
	}

	sigClose := installReloadSignalHandler(s.mods, s.cfg.Mods.File)
	defer func() { _ = sigClose.Close() }()

	if s.cfg.Mods.AutoReload.Enabled {
		debounce := time.Duration(s.cfg.Mods.AutoReload.DebounceMs) * time.Millisecond
		autoReloadClose, err := modregistry.AutoReload(s.mods, s.cfg.Mods.File, debounce)
		if err != nil {
			return fmt.Errorf("init mods auto reload: %w", err)
		}
		if autoReloadClose != nil {
			defer func() { _ = autoReloadClose.Close() }()
		}
	}

	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Listen, err)
	}
	log.Printf("pochamoe %s listening on %s (h2c=%t, mods=%s)", version.Short(), ln.Addr(), s.cfg.Server.H2C, strings.Join(s.mods.Names(), ","))
	return s.Serve(ctx, ln)
}

// Run loads cfgPath and serves until ctx is done.
func Run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	lvl, err := logx.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logx.SetLevel(lvl)
	if lvl == logx.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return s.Run(ctx)
}

func openAccessLogger(cfg *config.Config) (*log.Logger, io.Closer, bool, error) {
	if cfg == nil || !cfg.Logging.AccessLog {
		return nil, nil, false, nil
	}

	path := strings.TrimSpace(cfg.Logging.AccessLogPath)
	if path == "" {
		return log.New(os.Stdout, "", 0), nil, logx.ColorEnabled(), nil
	}

	rot := cfg.Logging.AccessLogRotate
	if rot.Enabled {
		w, err := logx.NewRotateWriter(logx.RotateOptions{
			Path:       path,
			MaxSizeMB:  rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAgeDays: rot.MaxAgeDays,
			Compress:   rot.Compress,
		})
		if err != nil {
			return nil, nil, false, err
		}
		return log.New(w, "", 0), w, false, nil
	}

	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, false, err
		}
	}
	// #nosec G304 -- access_log_path comes from trusted config/env.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, false, err
	}
	return log.New(f, "", 0), f, false, nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func writePIDFile(path string) (io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	dir := filepath.Dir(path)
	if strings.TrimSpace(dir) != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	tmp := path + ".tmp"
	pid := strconv.Itoa(os.Getpid()) + "\n"
	// #nosec G304 -- pid_file comes from trusted config/env.
	if err := os.WriteFile(tmp, []byte(pid), 0o600); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return closerFunc(func() error { return os.Remove(path) }), nil
}

// installReloadSignalHandler re-reads the mods file on SIGHUP. It is always
// installed so SIGHUP never terminates the server.
func installReloadSignalHandler(mods *modregistry.AllowList, modsFile string) io.Closer {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
			reloadMods(mods, modsFile, "signal")
		}
	}()
	return closerFunc(func() error {
		signal.Stop(ch)
		close(ch)
		<-done
		return nil
	})
}

func reloadMods(mods *modregistry.AllowList, modsFile, trigger string) {
	if mods == nil {
		return
	}
	if strings.TrimSpace(modsFile) == "" {
		logx.Infof("reload skipped (%s): mods.file is not set", trigger)
		return
	}
	diff, err := mods.ReloadFile(modsFile)
	if err != nil {
		logx.Warnf("reload failed (%s): %v", trigger, err)
		return
	}
	logx.Infof("reload ok (%s): mods_file=%q changed=%s", trigger, modsFile, diff)
}
