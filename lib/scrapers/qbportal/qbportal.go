package qbportal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/qbportal")

var LoginFailed = fmt.Errorf("failed to login to the portal")

// how long to wait for a login control to appear before concluding the
// portal's form structure changed
const locateTimeout = time.Second * 10

// Delays is the settle/backoff policy for the portal's fixed-sleep navigation
// flow. The zero value is replaced with DefaultDelays by Open.
type Delays struct {
	LoginForm       time.Duration `json:"login_form"`
	LoginSettle     time.Duration `json:"login_settle"`
	PageSettle      time.Duration `json:"page_settle"`
	DownloadSettle  time.Duration `json:"download_settle"`
	DownloadPoll    time.Duration `json:"download_poll"`
	DownloadRetries int           `json:"download_retries"`
}

func DefaultDelays() Delays {
	return Delays{
		LoginForm:       time.Second * 3,
		LoginSettle:     time.Second * 10,
		PageSettle:      time.Second * 8,
		DownloadSettle:  time.Second * 5,
		DownloadPoll:    time.Second * 3,
		DownloadRetries: 5,
	}
}

type SessionOptions struct {
	Realm           string
	AppId           string
	MaterialTableId string
	LoginUrl        string
	LoginEmail      string
	LoginPassword   string
	Headless        bool
	Delays          Delays
}

// Session owns one authenticated browser connection to the portal. It is not
// safe for concurrent use, navigation state is shared across all methods.
type Session struct {
	opts     SessionOptions
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	closed   bool
}

// Open launches the browser, navigates to the login page and performs the
// two-step login flow. On any failure the underlying browser is released
// before returning, a half-open session is never handed back.
func Open(ctx context.Context, opts SessionOptions) (*Session, error) {
	ctx, span := tracer.Start(ctx, "qbportal:Open")
	defer span.End()

	if opts.Delays == (Delays{}) {
		opts.Delays = DefaultDelays()
	}

	l := launcher.New().Headless(opts.Headless)
	controlUrl, err := l.Launch()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return nil, err
	}

	session := &Session{opts: opts, launcher: l}

	browser := rod.New().ControlURL(controlUrl)
	if err := browser.Connect(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to connect to browser")
		session.Close()
		return nil, err
	}
	session.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: opts.LoginUrl})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open login page")
		session.Close()
		return nil, err
	}
	session.page = page

	if err := page.WaitLoad(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login page did not load")
		session.Close()
		return nil, err
	}

	if err := session.login(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		session.Close()
		return nil, err
	}

	return session, nil
}

func (s *Session) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "qbportal:login")
	defer span.End()

	time.Sleep(s.opts.Delays.LoginForm)

	email, err := s.page.Timeout(locateTimeout).Element(
		`input[name="email"], input[id*="email"], input[type="email"]`)
	if err != nil {
		return fmt.Errorf("%w: email input not found", LoginFailed)
	}
	if err := email.Input(s.opts.LoginEmail); err != nil {
		return fmt.Errorf("%w: %s", LoginFailed, err)
	}

	password, err := s.page.Timeout(locateTimeout).Element(
		`input[name="password"], input[id*="password"], input[type="password"]`)
	if err != nil {
		return fmt.Errorf("%w: password input not found", LoginFailed)
	}
	if err := password.Input(s.opts.LoginPassword); err != nil {
		return fmt.Errorf("%w: %s", LoginFailed, err)
	}

	submit, err := s.page.Timeout(locateTimeout).Element(
		`button[type="submit"], input[type="submit"], button[id*="login"]`)
	if err != nil {
		return fmt.Errorf("%w: submit control not found", LoginFailed)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: %s", LoginFailed, err)
	}

	slog.InfoContext(ctx, "submitted portal login form", "login_url", s.opts.LoginUrl)
	time.Sleep(s.opts.Delays.LoginSettle)
	return nil
}

// RecordUrl builds the deterministic item URL for a record id.
func (s *Session) RecordUrl(recordId int) string {
	return fmt.Sprintf(
		"https://%s/nav/app/%s/table/%s/action/dr?rid=%d",
		s.opts.Realm, s.opts.AppId, s.opts.MaterialTableId, recordId,
	)
}

// FetchItemPage navigates the shared tab to the record's page and returns the
// rendered HTML after the settle interval. No retry, the caller decides how
// fatal a failure is.
func (s *Session) FetchItemPage(ctx context.Context, recordId int) (string, error) {
	ctx, span := tracer.Start(ctx, "qbportal:FetchItemPage")
	defer span.End()
	span.SetAttributes(attribute.Int("record_id", recordId))

	url := s.RecordUrl(recordId)
	slog.InfoContext(ctx, "navigating to item page", "url", url)

	if err := s.page.Navigate(url); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return "", err
	}
	if err := s.page.WaitLoad(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "item page did not load")
		return "", err
	}
	time.Sleep(s.opts.Delays.PageSettle)

	html, err := s.page.HTML()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read page html")
		return "", err
	}
	return html, nil
}

// fetches a URL inside the authenticated page so the portal's cookies apply,
// returning the body as base64
const fetchBase64 = `async (url) => {
	const res = await fetch(url, { credentials: "include" });
	if (!res.ok) {
		throw new Error("fetch failed: " + res.status);
	}
	const bytes = new Uint8Array(await res.arrayBuffer());
	let binary = "";
	for (let i = 0; i < bytes.length; i++) {
		binary += String.fromCharCode(bytes[i]);
	}
	return btoa(binary);
}`

// DownloadImage pulls a URL into destPath through the authenticated session.
// The request is re-issued up to DownloadRetries times with DownloadPoll
// between attempts. Exhausting the retries is logged, not returned, a missing
// image is non-fatal to the owning material.
func (s *Session) DownloadImage(ctx context.Context, url, destPath string) error {
	ctx, span := tracer.Start(ctx, "qbportal:DownloadImage")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	done := s.downloadWithRetries(ctx, url, destPath, func() ([]byte, error) {
		res, err := s.page.Timeout(s.opts.Delays.DownloadSettle + locateTimeout).Eval(fetchBase64, url)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(res.Value.Str())
	})
	if !done {
		span.SetStatus(codes.Error, "download retries exhausted")
		slog.WarnContext(ctx, "giving up on image download",
			"url", url, "attempts", s.opts.Delays.DownloadRetries)
	}
	return nil
}

// downloadWithRetries issues fetch up to DownloadRetries times, writing the
// first successful body to destPath. Reports whether the file ended up on disk.
func (s *Session) downloadWithRetries(ctx context.Context, url, destPath string, fetch func() ([]byte, error)) bool {
	for attempt := 1; attempt <= s.opts.Delays.DownloadRetries; attempt++ {
		if _, err := os.Stat(destPath); err == nil {
			return true
		}
		if attempt > 1 {
			time.Sleep(s.opts.Delays.DownloadPoll)
		}

		data, err := fetch()
		if err != nil {
			slog.WarnContext(ctx, "image download attempt failed",
				"url", url, "attempt", attempt, "err", err)
			continue
		}
		if err := os.WriteFile(destPath, data, 0644); err != nil {
			slog.WarnContext(ctx, "failed to write downloaded image",
				"path", destPath, "err", err)
			continue
		}
		return true
	}
	return false
}

// Close releases the underlying browser. It is idempotent, every Open must be
// paired with exactly one effective Close even when Open itself failed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errlist []error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errlist = append(errlist, err)
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return errors.Join(errlist...)
}
