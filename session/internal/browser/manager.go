// Package browser launches and connects to Chrome through Rod: one
// process per account profile, headless or on an Xvfb display, desktop or
// emulated mobile, with optional request blocking.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Display controls how Chrome is shown.
type Display int

const (
	DisplayHeadless Display = iota // headless + stealth
	DisplayXvfb                    // headful on a virtual display
	DisplayVisible                 // headful on the user's display
)

// Desktop and mobile user agents sent with every page.
const (
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0"
	MobileUserAgent  = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36 EdgA/124.0.0.0"
)

// Config configures a Manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome.
	RemoteURL string

	// Bin overrides the Chrome binary. Empty lets Rod find or download one.
	Bin string

	// UserDataDir keeps cookies between runs. One per account and kind.
	UserDataDir string

	Proxy string
	Lang  string

	// Mobile emulates a phone: viewport, touch and mobile user agent.
	Mobile bool

	Display Display

	// XvfbDisplay for DisplayXvfb. Default: ":99".
	XvfbDisplay string

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Lang == "" {
		c.Lang = "en"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// UserAgent returns the user agent pages are created with.
func (c Config) UserAgent() string {
	if c.Mobile {
		return MobileUserAgent
	}
	return DesktopUserAgent
}

// Manager owns one Chrome process.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Start launches Chrome, or connects to RemoteURL. Calling Start on a
// running manager returns the existing browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}
	b, err := m.launch(ctx)
	if err != nil {
		m.cleanup()
		return nil, err
	}
	m.browser = b
	return b, nil
}

// Browser returns the running browser, or nil.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close shuts down Chrome and Xvfb. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Display == DisplayXvfb {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := m.launcher()
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome",
			"url", wsURL, "mobile", m.cfg.Mobile, "profile", m.cfg.UserDataDir)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	// Pages outlive the launch context; callers scope each call instead.
	return b.Context(context.Background()), nil
}

func (m *Manager) launcher() *launcher.Launcher {
	l := launcher.New()
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}
	switch m.cfg.Display {
	case DisplayXvfb:
		l = l.Headless(false).Env("DISPLAY=" + m.cfg.XvfbDisplay)
	case DisplayVisible:
		l = l.Headless(false)
	default:
		l = l.Headless(true)
	}
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	if m.cfg.Proxy != "" {
		l = l.Proxy(m.cfg.Proxy)
	}
	return l.
		Set("disable-blink-features", "AutomationControlled").
		Set("lang", m.cfg.Lang).
		Set("user-agent", m.cfg.UserAgent()).
		Set("no-first-run").
		Set("no-default-browser-check")
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Debug("browser: close", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		// Cleanup also deletes the user-data dir, which holds the login.
		if m.cfg.UserDataDir != "" {
			m.lnch.Kill()
		} else {
			m.lnch.Cleanup()
		}
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}
