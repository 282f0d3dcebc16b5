package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Screen sizes for the virtual display, matching the emulated device.
const (
	desktopScreen = "1920x1080x24"
	mobileScreen  = "412x915x24"
)

// startXvfb runs a virtual X server so Chrome can run headful on a box
// without a display. It returns once the server socket exists.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}
	screen := desktopScreen
	if m.cfg.Mobile {
		screen = mobileScreen
	}
	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", screen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	if err := waitDisplay(display, 3*time.Second); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}
	m.xvfb = cmd
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "screen", screen, "pid", cmd.Process.Pid)
	return nil
}

// waitDisplay polls for the X11 socket of display (":99" → /tmp/.X11-unix/X99).
func waitDisplay(display string, timeout time.Duration) error {
	sock := "/tmp/.X11-unix/X" + strings.TrimPrefix(display, ":")
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(sock); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("xvfb: display %s not ready after %s", display, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	_ = m.xvfb.Process.Kill()
	_ = m.xvfb.Wait()
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
}
