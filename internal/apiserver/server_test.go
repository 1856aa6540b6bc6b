package apiserver

import (
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mercurialworld/pochamoe-api/internal/logx"
)

func TestOpenAccessLogger_RotateEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	cfg := testConfig(t)
	cfg.Logging.AccessLogPath = path
	cfg.Logging.AccessLogRotate.Enabled = true
	cfg.Logging.AccessLogRotate.MaxSizeMB = 1
	cfg.Logging.AccessLogRotate.MaxBackups = 2

	l, closer, color, err := openAccessLogger(cfg)
	if err != nil {
		t.Fatalf("openAccessLogger err=%v", err)
	}
	if l == nil || color {
		t.Fatalf("logger=%v color=%v", l, color)
	}
	if _, ok := closer.(*logx.RotateWriter); !ok {
		t.Fatalf("expected RotateWriter closer, got %T", closer)
	}
	l.Println("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("close err=%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected active log file, stat err=%v", err)
	}
}

func TestOpenAccessLogger_FileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "access.log")
	cfg := testConfig(t)
	cfg.Logging.AccessLogPath = path

	l, closer, _, err := openAccessLogger(cfg)
	if err != nil {
		t.Fatalf("openAccessLogger err=%v", err)
	}
	if _, ok := closer.(*os.File); !ok {
		t.Fatalf("expected os.File closer, got %T", closer)
	}
	l.Println("hello")
	_ = closer.Close()
	b, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(b)) != "hello" {
		t.Fatalf("content=%q err=%v", b, err)
	}
}

func TestOpenAccessLogger_Disabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.AccessLog = false
	l, closer, _, err := openAccessLogger(cfg)
	if err != nil || l != nil || closer != nil {
		t.Fatalf("l=%v closer=%v err=%v", l, closer, err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "pochamoe.pid")
	closer, err := writePIDFile(path)
	if err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(b)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid=%q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
	_ = closer.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("pid file not removed: %v", err)
	}

	if c, err := writePIDFile("  "); c != nil || err != nil {
		t.Fatalf("blank path: c=%v err=%v", c, err)
	}
}

func TestReloadMods(t *testing.T) {
	cfg := testConfig(t)
	modsFile := filepath.Join(t.TempDir(), "mods.yaml")
	if err := os.WriteFile(modsFile, []byte("mods: [Extra]\n"), 0o600); err != nil {
		t.Fatalf("write mods: %v", err)
	}
	cfg.Mods.File = modsFile
	_, mods, err := NewVersionHandler(cfg, nil)
	if err != nil {
		t.Fatalf("NewVersionHandler: %v", err)
	}
	if !mods.Allows("extra") || !mods.Allows("dumbrequestmanager") {
		t.Fatalf("names=%v", mods.Names())
	}

	if err := os.WriteFile(modsFile, []byte("mods: [Later]\n"), 0o600); err != nil {
		t.Fatalf("write mods: %v", err)
	}
	reloadMods(mods, modsFile, "test")
	if mods.Allows("extra") || !mods.Allows("later") {
		t.Fatalf("names after reload=%v", mods.Names())
	}
}

func TestReloadMods_LogsFollowLevel(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		logx.SetLevel(logx.LevelInfo)
	})

	cfg := testConfig(t)
	modsFile := filepath.Join(t.TempDir(), "mods.yaml")
	if err := os.WriteFile(modsFile, []byte("mods: [Extra]\n"), 0o600); err != nil {
		t.Fatalf("write mods: %v", err)
	}
	cfg.Mods.File = modsFile
	_, mods, err := NewVersionHandler(cfg, nil)
	if err != nil {
		t.Fatalf("NewVersionHandler: %v", err)
	}

	logx.SetLevel(logx.LevelWarn)
	buf.Reset()
	reloadMods(mods, modsFile, "test")
	reloadMods(mods, "", "test")
	if buf.Len() != 0 {
		t.Fatalf("info lines leaked at warn level: %q", buf.String())
	}

	if err := os.WriteFile(modsFile, []byte("mods: [\n"), 0o600); err != nil {
		t.Fatalf("write mods: %v", err)
	}
	reloadMods(mods, modsFile, "test")
	out := buf.String()
	if !strings.Contains(out, logx.Prefix) || !strings.Contains(out, "WARNING") || !strings.Contains(out, "reload failed (test)") {
		t.Fatalf("expected warning line, got %q", out)
	}
	if !mods.Allows("extra") {
		t.Fatalf("failed reload changed names: %v", mods.Names())
	}

	logx.SetLevel(logx.LevelInfo)
	buf.Reset()
	if err := os.WriteFile(modsFile, []byte("mods: [Later]\n"), 0o600); err != nil {
		t.Fatalf("write mods: %v", err)
	}
	reloadMods(mods, modsFile, "test")
	if !strings.Contains(buf.String(), "reload ok (test)") || !strings.Contains(buf.String(), "+Later") {
		t.Fatalf("expected ok line, got %q", buf.String())
	}
}

func TestNewVersionHandler_BadPattern(t *testing.T) {
	cfg := testConfig(t)
	cfg.Versions.Pattern = "loose"
	if _, _, err := NewVersionHandler(cfg, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.AccessLog = false
	cfg.Server.H2C = true
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/version/DumbRequestManager/1.2.3")
	if err != nil {
		cancel()
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "0.6.7.0" {
		cancel()
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
}
