package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"

	"lapelle-backend/lib/keychain"
	"lapelle-backend/lib/timezone"
	"lapelle-backend/services/portal"
)

var tracer = otel.Tracer("services/schedule")

var (
	ErrNoGroupFound    = fmt.Errorf("user does not belong to any recognized group")
	ErrNoCourseToday   = fmt.Errorf("no course scheduled today")
	ErrNoCurrentCourse = fmt.Errorf("no course is in progress right now")
	ErrNoNextCourse    = fmt.Errorf("no further course scheduled today")
)

// Membership is a user's edge to a group. The group itself and the edge are
// verified independently: a group name can be recognized by the portal while
// a given user's membership in it is still only declared.
type Membership struct {
	Group         string
	Verified      bool
	GroupVerified bool
}

// Member is one user of a group, as far as scheduling cares: whether we hold
// portal credentials for them.
type Member struct {
	UserID       string
	Credentialed bool
}

// GroupMembers is a verified group together with its verified members.
type GroupMembers struct {
	Group   string
	Members []Member
}

// Directory resolves users and groups. Implemented by services/directory.
type Directory interface {
	UserGroups(ctx context.Context, userID string) ([]Membership, error)
	GroupMembers(ctx context.Context, groups []string) ([]GroupMembers, error)
	UpsertGroup(ctx context.Context, group string, verified bool) error
	UpsertMembership(ctx context.Context, userID, group string, verified bool) error
}

// CredentialSource yields a user's portal credentials, or zero credentials
// when none are on file.
type CredentialSource interface {
	Resolve(ctx context.Context, userID string) (keychain.Credentials, error)
}

// Scraper performs portal sessions on behalf of a credentialed user.
type Scraper interface {
	TodayCourses(ctx context.Context, creds keychain.Credentials) ([]portal.Course, error)
	WeekCourses(ctx context.Context, creds keychain.Credentials) (portal.Week, error)
	Groups(ctx context.Context, creds keychain.Credentials) ([]string, error)
	Presence(ctx context.Context, creds keychain.Credentials, course portal.Course) (portal.PresenceStatus, error)
}

// Meta rides alongside every response. Unprocessed lists the groups the
// engine could not produce fresh data for, in the order they were asked.
type Meta struct {
	Unprocessed []string
}

type Response[T any] struct {
	Data T
	Meta Meta
}

const (
	todayTTL    = 30 * time.Minute
	weekTTL     = 2 * time.Hour
	presenceTTL = 2 * time.Minute

	cacheSize = 1024
)

type cacheSet struct {
	today    *expirable.LRU[string, []portal.Course]
	week     *expirable.LRU[string, portal.Week]
	presence *expirable.LRU[string, portal.PresenceStatus]
}

func newCacheSet() cacheSet {
	return cacheSet{
		today:    expirable.NewLRU[string, []portal.Course](cacheSize, nil, todayTTL),
		week:     expirable.NewLRU[string, portal.Week](cacheSize, nil, weekTTL),
		presence: expirable.NewLRU[string, portal.PresenceStatus](cacheSize, nil, presenceTTL),
	}
}

// Service aggregates portal data across users and groups, serving from the
// TTL caches where possible and delegating scrapes to credentialed members
// where not.
type Service struct {
	dir     Directory
	creds   CredentialSource
	scraper Scraper
	cache   cacheSet
	now     func() time.Time
}

func NewService(dir Directory, creds CredentialSource, scraper Scraper) *Service {
	return &Service{
		dir:     dir,
		creds:   creds,
		scraper: scraper,
		cache:   newCacheSet(),
		now:     timezone.Now,
	}
}

func (s *Service) resolveCredentials(ctx context.Context, userID string) keychain.Credentials {
	creds, err := s.creds.Resolve(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve credentials",
			slog.String("user", userID), slog.String("error", err.Error()))
		return keychain.Credentials{}
	}
	return creds
}
