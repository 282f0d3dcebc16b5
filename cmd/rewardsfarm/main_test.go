package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/rewardsfarm/config"
	"github.com/hazyhaar/rewardsfarm/history"
	"github.com/hazyhaar/rewardsfarm/notify"
	"github.com/hazyhaar/rewardsfarm/search"
)

func TestFlagsApply(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Apprise = config.AppriseConfig{Endpoint: "http://apprise:8000", URLs: []string{"tgram://x"}}

	f := flags{visible: true, geo: "FR", lang: "fr", searchType: "mobile", disableApprise: true, verboseNotifs: true}
	require.NoError(t, f.apply(&cfg))
	require.Equal(t, "visible", cfg.Browser.Display)
	require.Equal(t, "FR", cfg.Browser.Geo)
	require.Equal(t, "fr", cfg.Browser.Lang)
	require.Empty(t, cfg.Notify.Apprise.Endpoint)
	require.True(t, cfg.Notify.Verbose)

	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	require.Equal(t, []search.Kind{search.Mobile}, kinds)
}

func TestFlagsApply_Invalid(t *testing.T) {
	cfg := config.Default()
	err := flags{searchType: "tablet"}.apply(&cfg)
	require.ErrorContains(t, err, "search.type")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := parseLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q): got %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("parseLevel(loud): want error")
	}
}

func TestSetupLogging_WritesActivityLog(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	sink, err := setupLogging(cfg)
	require.NoError(t, err)
	sink.logger.Info("rewardsfarm: hello", "n", 1)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "logs", "activity.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"rewardsfarm: hello"`)
}

func TestDailyLog_RotatesOnNewDay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activity.log")
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)

	d := newDailyLog(path, 2)
	d.now = func() time.Time { return day }
	_, err := d.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = d.Write([]byte("same day\n"))
	require.NoError(t, err)

	day = day.Add(2 * time.Minute)
	_, err = d.Write([]byte("next day\n"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "next day\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestDailyLog_StaleFileRotatesOnFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))
	old := time.Now().AddDate(0, 0, -3)
	require.NoError(t, os.Chtimes(path, old, old))

	d := newDailyLog(path, 2)
	_, err := d.Write([]byte("today\n"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "today\n", string(data))
}

func TestBuildNotifier(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Apprise.Endpoint = "http://apprise:8000"
	cfg.Notify.Webhooks = []string{"http://a/hook", "http://b/hook"}
	cfg.Notify.SMTP = &notify.SMTPConfig{Server: "smtp.example.com"}
	require.Equal(t, 4, buildNotifier(cfg, nil).Len())

	cfg.Notify.Disabled = true
	require.Equal(t, 0, buildNotifier(cfg, nil).Len())
}

func TestBuildFarm_SkipsTasks(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Tasks.Skip = []string{"daily_set", "more_promotions"}
	parts, err := buildFarm(cfg, history.OpenMemory(t), notify.NewRouter(nil), slog.Default())
	require.NoError(t, err)
	require.Equal(t, []search.Kind{search.Desktop, search.Mobile}, parts.cfg.Kinds)
	require.Equal(t, filepath.Join(cfg.DataDir, "logs", "points_data.csv"), parts.cfg.CSVPath)
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+dir+"\n"), 0o644))

	store, err := history.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	err = store.RecordPass(context.Background(), history.NewRunID(), "a@x.io", search.PlatformRunResult{
		Kind: search.Desktop, StartingPoints: 0, EndingPoints: 90, CreditedCount: 30, InitialQuota: 30, StopReason: search.StopExhausted,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--config", cfgPath})
	require.NoError(t, root.ExecuteContext(context.Background()))

	got := out.String()
	for _, want := range []string{"a@x.io", "desktop", "30/30", "exhausted"} {
		if !strings.Contains(got, want) {
			t.Errorf("history output missing %q:\n%s", want, got)
		}
	}
}
