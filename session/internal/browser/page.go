package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/devices"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// NavigateTimeout bounds a single navigation.
const NavigateTimeout = 30 * time.Second

// Page is a stealth tab configured for the manager's device.
type Page struct {
	page   *rod.Page
	router *rod.HijackRouter
	mgr    *Manager
}

// NewPage opens a stealth tab on the running browser, emulating a phone
// when the manager is mobile.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	page = page.Context(ctx)

	if m.cfg.Mobile {
		d := devices.Pixel2XL
		d.UserAgent = MobileUserAgent
		d.AcceptLanguage = m.cfg.Lang
		err = page.Emulate(d)
	} else {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      DesktopUserAgent,
			AcceptLanguage: m.cfg.Lang,
		})
	}
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("browser: emulate device: %w", err)
	}

	p := &Page{page: page.Context(context.Background()), mgr: m}
	if len(m.cfg.ResourceBlocking) > 0 {
		p.router = blockResources(p.page, m.cfg.ResourceBlocking)
	}
	return p, nil
}

// Navigate loads url and waits for the load event. A load timeout after a
// successful navigation is logged, not returned.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, NavigateTimeout)
	defer cancel()

	pg := p.page.Context(navCtx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		p.mgr.cfg.Logger.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	return nil
}

// URL returns the address currently loaded.
func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// HTML serialises the document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: get html: %w", err)
	}
	return html, nil
}

// EvalString runs fn, a JS function expression, and returns its result as
// a string. Non-string results are JSON encoded.
func (p *Page) EvalString(ctx context.Context, fn string) (string, error) {
	res, err := p.page.Context(ctx).Eval(fn)
	if err != nil {
		return "", fmt.Errorf("browser: eval: %w", err)
	}
	if res.Type == proto.RuntimeRemoteObjectTypeString {
		return res.Value.Str(), nil
	}
	return res.Value.JSON("", ""), nil
}

// Has reports whether selector matches an element right now.
func (p *Page) Has(ctx context.Context, selector string) bool {
	ok, _, err := p.page.Context(ctx).Has(selector)
	return err == nil && ok
}

// Fill types text into the first element matching selector.
func (p *Page) Fill(ctx context.Context, selector, text string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: find %s: %w", selector, err)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("browser: input %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("browser: find %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", selector, err)
	}
	return nil
}

// Close closes the tab and stops request blocking.
func (p *Page) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}
