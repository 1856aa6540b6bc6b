package logx

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const archiveTimeLayout = "20060102-150405.000000000"

type RotateOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Now        func() time.Time
}

func (o RotateOptions) validate() error {
	switch {
	case strings.TrimSpace(o.Path) == "":
		return errors.New("access log rotate path is empty")
	case o.MaxSizeMB <= 0:
		return errors.New("max_size_mb must be > 0")
	case o.MaxBackups <= 0:
		return errors.New("max_backups must be > 0")
	case o.MaxAgeDays < 0:
		return errors.New("max_age_days must be >= 0")
	}
	return nil
}

// RotateWriter is an io.WriteCloser that rolls the active file over when it
// would exceed MaxSizeMB or when the local day changes. Archives are named
// <path>.<timestamp>[.gz] and pruned by count and age after every roll.
type RotateWriter struct {
	opts     RotateOptions
	maxBytes int64

	mu     sync.Mutex
	f      *os.File
	size   int64
	day    string
	closed bool
}

func NewRotateWriter(opts RotateOptions) (*RotateWriter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	w := &RotateWriter{
		opts:     opts,
		maxBytes: int64(opts.MaxSizeMB) << 20,
	}
	if err := w.open(opts.Now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotateWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	now := w.opts.Now()
	overSize := w.size > 0 && w.size+int64(len(p)) > w.maxBytes
	if overSize || localDay(now) != w.day {
		if err := w.roll(now); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotateWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotateWriter) open(now time.Time) error {
	f, err := os.OpenFile(w.opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.size, w.day = f, st.Size(), localDay(now)
	return nil
}

func (w *RotateWriter) roll(now time.Time) error {
	if err := w.f.Close(); err != nil {
		return err
	}
	w.f = nil

	archive := fmt.Sprintf("%s.%s", w.opts.Path, now.In(time.Local).Format(archiveTimeLayout))
	renameErr := os.Rename(w.opts.Path, archive)
	if err := w.open(now); err != nil {
		return err
	}
	if renameErr != nil {
		if errors.Is(renameErr, os.ErrNotExist) {
			return nil
		}
		return renameErr
	}
	if w.opts.Compress {
		if err := gzipFile(archive); err != nil {
			return err
		}
	}
	w.prune(now)
	return nil
}

func (w *RotateWriter) prune(now time.Time) {
	archives := w.archives()
	cutoff := time.Time{}
	if w.opts.MaxAgeDays > 0 {
		cutoff = now.AddDate(0, 0, -w.opts.MaxAgeDays)
	}
	for i, a := range archives {
		if i >= w.opts.MaxBackups || (!cutoff.IsZero() && a.when.Before(cutoff)) {
			_ = os.Remove(a.path)
		}
	}
}

type archiveFile struct {
	path string
	when time.Time
}

// archives returns rotated files newest first.
func (w *RotateWriter) archives() []archiveFile {
	dir := filepath.Dir(w.opts.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	prefix := filepath.Base(w.opts.Path) + "."
	out := make([]archiveFile, 0, len(entries))
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".gz")
		when, err := time.ParseInLocation(archiveTimeLayout, stamp, time.Local)
		if err != nil {
			continue
		}
		out = append(out, archiveFile{path: filepath.Join(dir, name), when: when})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].when.After(out[j].when) })
	return out
}

func gzipFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	tmp := path + ".gz.tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	zw := gzip.NewWriter(dst)
	_, err = io.Copy(zw, src)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err = os.Rename(tmp, path+".gz"); err != nil {
		return err
	}
	return os.Remove(path)
}

func localDay(ts time.Time) string {
	return ts.In(time.Local).Format("20060102")
}
