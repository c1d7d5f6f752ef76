// CLAUDE:SUMMARY Headless-Chrome OG fetcher via Rod with stealth pages, for sites that render OG tags client-side.
package ogfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/hazyhaar/plurkive/internal/enrich"
	"github.com/hazyhaar/plurkive/internal/store"
)

// BrowserConfig configures a BrowserFetcher.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string
	// URLValidator validates URLs before navigation. Default: ValidateURL.
	URLValidator func(string) error
	Logger       *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.URLValidator == nil {
		c.URLValidator = ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BrowserFetcher renders pages in headless Chrome before reading OG tags.
// One Chrome process serves the whole run; each URL gets a fresh stealth
// tab so page state never leaks between fetches.
type BrowserFetcher struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	cfg     BrowserConfig
}

// NewBrowser launches (or connects to) Chrome. Call Close when done.
func NewBrowser(cfg BrowserConfig) (*BrowserFetcher, error) {
	cfg.defaults()

	var wsURL string
	var lnch *launcher.Launcher
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		cfg.Logger.Info("ogfetch: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(true)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("ogfetch: launch chrome: %w", err)
		}
		wsURL = u
		lnch = l
		cfg.Logger.Info("ogfetch: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("ogfetch: connect chrome: %w", err)
	}
	return &BrowserFetcher{browser: b, lnch: lnch, cfg: cfg}, nil
}

// Close shuts down the tab pool and, for a locally launched Chrome, the
// process itself.
func (f *BrowserFetcher) Close() error {
	err := f.browser.Close()
	if f.lnch != nil {
		f.lnch.Cleanup()
	}
	return err
}

// ogScript reads the OG meta tags after the page has rendered. Returned as
// a JSON string because Rod marshals primitive eval results most reliably.
const ogScript = `() => {
	const meta = (p) => {
		const el = document.querySelector('meta[property="' + p + '"], meta[name="' + p + '"]');
		return el ? (el.getAttribute('content') || '') : '';
	};
	return JSON.stringify({
		title: meta('og:title'),
		description: meta('og:description'),
		site_name: meta('og:site_name'),
		doc_title: document.title || ''
	});
}`

// Fetch implements enrich.Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (enrich.Result, error) {
	if err := f.cfg.URLValidator(url); err != nil {
		return enrich.Result{}, err
	}

	page, err := stealth.Page(f.browser)
	if err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: create tab: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: wait load %s: %w", url, err)
	}

	res, err := page.Eval(ogScript)
	if err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: read og tags: %w", err)
	}
	var og struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		SiteName    string `json:"site_name"`
		DocTitle    string `json:"doc_title"`
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &og); err != nil {
		return enrich.Result{}, fmt.Errorf("ogfetch: decode og tags: %w", err)
	}

	if og.Title == "" && og.Description == "" && og.SiteName == "" {
		return enrich.Result{Status: store.StatusNoOG}, nil
	}
	if og.Title == "" {
		og.Title = og.DocTitle
	}
	return enrich.Result{
		Status:      store.StatusSuccess,
		Title:       sanitized(og.Title),
		Description: sanitized(og.Description),
		SiteName:    sanitized(og.SiteName),
	}, nil
}
