package portal

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"lapelle-backend/lib/browserpool"
	"lapelle-backend/lib/scrape"
)

// initialize opens a fresh page on the engine and lands on the portal root.
func (s *Session) initialize(ctx context.Context, eng browserpool.Engine) error {
	page, err := eng.Page(ctx)
	if err != nil {
		return err
	}
	s.page = page

	scr := scrape.Session{Page: s.page}
	_, err = scr.Navigate(ctx, scrape.NavigateOptions{
		URL:     baseURL,
		Timeout: 10 * time.Second,
	})
	return err
}

// login runs the portal's two-stage authentication: the account identifier
// on the portal's own form, then identifier and password on the SSO host.
// Each stage is validated by the redirect it must produce, which is what
// lets us tell a bad email apart from a bad password.
func (s *Session) login(ctx context.Context) error {
	scr := scrape.Session{Page: s.page}

	// the login marker is absent when the portal already has a live
	// session for this page, in which case logging in again is a no-op
	if !scr.AwaitElement(ctx, "#login", 5*time.Second) {
		slog.DebugContext(ctx, "portal session already authenticated")
		s.loggedIn = true
		return nil
	}

	if err := scr.FillInput(ctx, "#login", s.creds.Email); err != nil {
		return err
	}

	redirected, err := scr.Navigate(ctx, scrape.NavigateOptions{
		Click:   "#btn_next",
		Timeout: 8 * time.Second,
		Safe:    true,
		Validate: func(location string) bool {
			return strings.HasPrefix(location, ssoPrefix)
		},
	})
	if err != nil {
		return err
	}
	if !redirected {
		return ErrInvalidEmail
	}

	if err := scr.FillInput(ctx, "#userNameInput", s.creds.Email); err != nil {
		return err
	}
	if err := scr.FillInput(ctx, "#passwordInput", s.creds.Password); err != nil {
		return err
	}

	redirected, err = scr.Navigate(ctx, scrape.NavigateOptions{
		Click:   "#submitButton",
		Timeout: 10 * time.Second,
		Safe:    true,
		Validate: func(location string) bool {
			return location == baseURL
		},
	})
	if err != nil {
		return err
	}
	if !redirected {
		return ErrInvalidPassword
	}

	s.loggedIn = true
	return nil
}
