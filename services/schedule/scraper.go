package schedule

import (
	"context"

	"lapelle-backend/lib/browserpool"
	"lapelle-backend/lib/keychain"
	"lapelle-backend/services/portal"
)

// PortalScraper satisfies Scraper by running one portal session per call
// against the shared browser pool.
type PortalScraper struct {
	pool *browserpool.Pool
}

func NewPortalScraper(pool *browserpool.Pool) *PortalScraper {
	return &PortalScraper{pool: pool}
}

func (p *PortalScraper) TodayCourses(ctx context.Context, creds keychain.Credentials) ([]portal.Course, error) {
	var courses []portal.Course
	err := p.session(ctx, creds, func(ctx context.Context, s *portal.Session) error {
		var err error
		courses, err = s.TodayCourses(ctx)
		return err
	})
	return courses, err
}

func (p *PortalScraper) WeekCourses(ctx context.Context, creds keychain.Credentials) (portal.Week, error) {
	var week portal.Week
	err := p.session(ctx, creds, func(ctx context.Context, s *portal.Session) error {
		var err error
		week, err = s.WeekCourses(ctx)
		return err
	})
	return week, err
}

func (p *PortalScraper) Groups(ctx context.Context, creds keychain.Credentials) ([]string, error) {
	var groups []string
	err := p.session(ctx, creds, func(ctx context.Context, s *portal.Session) error {
		var err error
		groups, err = s.Groups(ctx)
		return err
	})
	return groups, err
}

func (p *PortalScraper) Presence(ctx context.Context, creds keychain.Credentials, course portal.Course) (portal.PresenceStatus, error) {
	var status portal.PresenceStatus
	err := p.session(ctx, creds, func(ctx context.Context, s *portal.Session) error {
		var err error
		status, err = s.Presence(ctx, course)
		return err
	})
	return status, err
}

func (p *PortalScraper) session(ctx context.Context, creds keychain.Credentials, fn func(ctx context.Context, s *portal.Session) error) error {
	sess, err := portal.NewSession(p.pool, creds, portal.Options{})
	if err != nil {
		return err
	}
	return sess.Run(ctx, fn)
}
