// Package portal drives an authenticated scraping session against the
// school portal. It owns the login protocol and the extraction of courses,
// groups and attendance state from the portal's markup; everything
// page-level goes through the shared browser pool.
package portal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"lapelle-backend/lib/browserpool"
	"lapelle-backend/lib/keychain"
	"lapelle-backend/lib/restyutil"
)

var tracer = otel.Tracer("services/portal")

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables request/response transcript dumps for
// the presence page fetches.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

const (
	baseURL      = "https://www.leonard-de-vinci.net/"
	calendarURL  = baseURL + "?my=edt"
	profileURL   = baseURL + "?my=fiche"
	presencesURL = baseURL + "student/presences/"
	ssoPrefix    = "https://adfs.devinci.fr/adfs/ls"
)

var (
	ErrMissingCredentials = fmt.Errorf("no credentials available for this session")
	ErrInvalidEmail       = fmt.Errorf("the portal rejected the account email")
	ErrInvalidPassword    = fmt.Errorf("the portal rejected the account password")
)

type Options struct {
	// KeepOpen keeps the page and login state alive across Run calls
	// instead of releasing them when each call finishes.
	KeepOpen bool
}

// Session is a stateful login + extraction session. One session serves one
// user's credentials; it acquires a serialized pool slot for each Run.
type Session struct {
	pool     *browserpool.Pool
	creds    keychain.Credentials
	keepOpen bool

	page     *rod.Page
	loggedIn bool
}

// NewSession fails immediately when no credentials resolve: a session
// without credentials can never authenticate, so no partial session is
// created.
func NewSession(pool *browserpool.Pool, creds keychain.Credentials, opts Options) (*Session, error) {
	if creds.IsZero() {
		return nil, ErrMissingCredentials
	}
	return &Session{
		pool:     pool,
		creds:    creds,
		keepOpen: opts.KeepOpen,
	}, nil
}

// Run acquires an exclusive pool slot, authenticates if needed, and invokes
// fn with the live session. The page resource is released afterward unless
// the session was created with KeepOpen.
func (s *Session) Run(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	return s.pool.Do(ctx, func(ctx context.Context, eng browserpool.Engine) error {
		ctx, span := tracer.Start(ctx, "portal:Run")
		defer span.End()

		err := s.run(ctx, eng, fn)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.ErrorContext(ctx, "portal session failed", "err", err)
		}
		// infrastructure-level failures must surface as engine faults so
		// the pool relaunches, everything else stays an ordinary error
		return browserpool.ClassifyPageError(err)
	})
}

func (s *Session) run(ctx context.Context, eng browserpool.Engine, fn func(ctx context.Context, s *Session) error) error {
	if !s.keepOpen {
		defer s.release()
	}

	if !s.loggedIn {
		if err := s.initialize(ctx, eng); err != nil {
			return err
		}
		if err := s.login(ctx); err != nil {
			return err
		}
	}

	return fn(ctx, s)
}

func (s *Session) release() {
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			slog.Warn("failed to close portal page", "err", err)
		}
		s.page = nil
	}
	s.loggedIn = false
}
