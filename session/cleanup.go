package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// chromeNames are process names of Chrome builds Rod may launch.
var chromeNames = []string{"chrome", "chromium", "chromium-browser", "google-chrome", "headless_shell", "msedge"}

// CleanupChrome terminates Chrome processes left behind by an earlier run.
// Only processes whose command line contains marker (the profile root)
// are touched; an empty marker touches nothing. It returns how many were
// signalled.
func CleanupChrome(ctx context.Context, marker string, logger *slog.Logger) (int, error) {
	if marker == "" {
		return 0, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("session: list processes: %w", err)
	}

	killed := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !isChrome(name) {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || !strings.Contains(cmdline, marker) {
			continue
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			logger.Warn("session: terminate chrome", "pid", p.Pid, "error", err)
			if err := p.KillWithContext(ctx); err != nil {
				continue
			}
		}
		killed++
	}
	if killed > 0 {
		logger.Info("session: cleaned up chrome processes", "count", killed)
	}
	return killed, nil
}

func isChrome(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, ".exe"))
	for _, n := range chromeNames {
		if name == n {
			return true
		}
	}
	return false
}
