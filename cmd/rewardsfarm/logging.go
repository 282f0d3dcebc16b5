package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hazyhaar/rewardsfarm/config"
)

type logSink struct {
	logger *slog.Logger
	file   io.Closer
}

func (s logSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// setupLogging writes JSON records to stderr and, when configured, to the
// activity log under the data dir.
func setupLogging(cfg config.Config) (logSink, error) {
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return logSink{}, err
	}
	var (
		w    io.Writer = os.Stderr
		file io.Closer
	)
	if cfg.Log.File != "" {
		path := cfg.Path(cfg.Log.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return logSink{}, fmt.Errorf("rewardsfarm: log dir: %w", err)
		}
		daily := newDailyLog(path, cfg.Log.Backups)
		file = daily
		w = io.MultiWriter(os.Stderr, daily)
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logSink{logger: logger, file: file}, nil
}

// dailyLog rotates the activity log on the first write of a new day.
type dailyLog struct {
	mu  sync.Mutex
	out *lumberjack.Logger
	day string
	now func() time.Time
}

func newDailyLog(path string, backups int) *dailyLog {
	d := &dailyLog{
		out: &lumberjack.Logger{Filename: path, MaxBackups: backups, LocalTime: true},
		now: time.Now,
	}
	if st, err := os.Stat(path); err == nil {
		d.day = st.ModTime().Format(time.DateOnly)
	}
	return d
}

func (d *dailyLog) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	today := d.now().Format(time.DateOnly)
	if d.day != "" && d.day != today {
		if err := d.out.Rotate(); err != nil {
			return 0, fmt.Errorf("rewardsfarm: rotate log: %w", err)
		}
	}
	d.day = today
	return d.out.Write(p)
}

func (d *dailyLog) Close() error { return d.out.Close() }
