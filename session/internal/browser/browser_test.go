package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestShouldBlock(t *testing.T) {
	set := blockSet([]string{"images", " Media ", "font", ""})
	cases := []struct {
		resType proto.NetworkResourceType
		want    bool
	}{
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeMedia, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeStylesheet, false},
		{proto.NetworkResourceTypeDocument, false},
		{proto.NetworkResourceTypeXHR, false},
	}
	for _, c := range cases {
		if got := shouldBlock(set, c.resType); got != c.want {
			t.Errorf("shouldBlock(%q): got %v, want %v", c.resType, got, c.want)
		}
	}
	if len(set) != 3 {
		t.Errorf("blockSet: got %d entries, want 3", len(set))
	}
}

func TestBlockSet_XHR(t *testing.T) {
	if !shouldBlock(blockSet([]string{"xhr"}), proto.NetworkResourceTypeXHR) {
		t.Error("xhr should match the XHR resource type")
	}
}

func TestConfigDefaults(t *testing.T) {
	m := NewManager(Config{})
	cfg := m.Config()
	if cfg.XvfbDisplay != ":99" {
		t.Fatalf("display: got %q, want %q", cfg.XvfbDisplay, ":99")
	}
	if cfg.Lang != "en" {
		t.Fatalf("lang: got %q, want %q", cfg.Lang, "en")
	}
	if cfg.UserAgent() != DesktopUserAgent {
		t.Fatalf("desktop user agent: got %q", cfg.UserAgent())
	}
	if ua := (Config{Mobile: true}).UserAgent(); ua != MobileUserAgent {
		t.Fatalf("mobile user agent: got %q", ua)
	}
}

func TestNewPageWithoutBrowser(t *testing.T) {
	m := NewManager(Config{})
	if _, err := m.NewPage(t.Context()); err == nil {
		t.Fatal("expected error without a running browser")
	}
}

func TestStartAfterClose(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := m.Start(t.Context()); err == nil {
		t.Fatal("expected error starting a closed manager")
	}
}
