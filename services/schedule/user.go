package schedule

import (
	"context"
	"time"

	"lapelle-backend/services/portal"
)

// UserTodayCourses aggregates today's courses across every verified group
// the user belongs to. Groups with a fresh cache entry cost nothing; groups
// the user verifiably belongs to are covered by a single scrape under the
// user's own credentials; any remaining group is delegated to another
// credentialed member.
func (s *Service) UserTodayCourses(ctx context.Context, userID string) (Response[[]portal.Course], error) {
	ctx, span := tracer.Start(ctx, "UserTodayCourses")
	defer span.End()

	verified, err := s.verifiedGroups(ctx, userID)
	if err != nil {
		return Response[[]portal.Course]{}, err
	}

	var data []portal.Course
	cached := make(map[string]bool)
	for _, m := range verified {
		if courses, ok := s.cache.today.Get(m.Group); ok {
			data = MergeCourses(data, courses)
			cached[m.Group] = true
		}
	}

	ownCovered, delegated := s.partitionUncached(verified, cached)
	if len(ownCovered) > 0 {
		creds := s.resolveCredentials(ctx, userID)
		if !creds.IsZero() {
			courses, err := s.scraper.TodayCourses(ctx, creds)
			if err != nil {
				return Response[[]portal.Course]{}, err
			}
			data = MergeCourses(courses, data)
		} else {
			// No credentials on file: the user's own groups have to go
			// through delegation like anyone else's.
			delegated = append(ownCovered, delegated...)
			ownCovered = nil
		}
	}

	var meta Meta
	if len(delegated) > 0 {
		res, err := s.GroupsTodayCourses(ctx, delegated)
		if err != nil {
			return Response[[]portal.Course]{}, err
		}
		data = MergeCourses(data, res.Data)
		meta = res.Meta
	}

	for _, g := range ownCovered {
		s.cache.today.Add(g, coursesForGroup(data, g))
	}

	if len(data) == 0 {
		return Response[[]portal.Course]{Meta: meta}, ErrNoCourseToday
	}
	return Response[[]portal.Course]{Data: data, Meta: meta}, nil
}

// UserWeekCourses is the week-range variant of UserTodayCourses.
func (s *Service) UserWeekCourses(ctx context.Context, userID string) (Response[portal.Week], error) {
	ctx, span := tracer.Start(ctx, "UserWeekCourses")
	defer span.End()

	verified, err := s.verifiedGroups(ctx, userID)
	if err != nil {
		return Response[portal.Week]{}, err
	}

	var data portal.Week
	cached := make(map[string]bool)
	for _, m := range verified {
		if week, ok := s.cache.week.Get(m.Group); ok {
			merged, err := MergeWeeks(data, week)
			if err != nil {
				return Response[portal.Week]{}, err
			}
			data = merged
			cached[m.Group] = true
		}
	}

	ownCovered, delegated := s.partitionUncached(verified, cached)
	if len(ownCovered) > 0 {
		creds := s.resolveCredentials(ctx, userID)
		if !creds.IsZero() {
			week, err := s.scraper.WeekCourses(ctx, creds)
			if err != nil {
				return Response[portal.Week]{}, err
			}
			merged, err := MergeWeeks(week, data)
			if err != nil {
				return Response[portal.Week]{}, err
			}
			data = merged
		} else {
			delegated = append(ownCovered, delegated...)
			ownCovered = nil
		}
	}

	var meta Meta
	if len(delegated) > 0 {
		res, err := s.GroupsWeekCourses(ctx, delegated)
		if err != nil {
			return Response[portal.Week]{}, err
		}
		merged, err := MergeWeeks(data, res.Data)
		if err != nil {
			return Response[portal.Week]{}, err
		}
		data = merged
		meta = res.Meta
	}

	for _, g := range ownCovered {
		s.cache.week.Add(g, weekForGroup(data, g))
	}

	if len(data.Days) == 0 {
		return Response[portal.Week]{Meta: meta}, ErrNoCourseToday
	}
	return Response[portal.Week]{Data: data, Meta: meta}, nil
}

// UserCurrentCourse returns the course the user is sitting in right now.
func (s *Service) UserCurrentCourse(ctx context.Context, userID string) (Response[portal.Course], error) {
	today, err := s.UserTodayCourses(ctx, userID)
	if err != nil {
		return Response[portal.Course]{Meta: today.Meta}, err
	}
	course, ok := currentCourse(today.Data, s.now())
	if !ok {
		return Response[portal.Course]{Meta: today.Meta}, ErrNoCurrentCourse
	}
	return Response[portal.Course]{Data: course, Meta: today.Meta}, nil
}

// UserNextCourse returns the user's first course of today that has not
// started yet.
func (s *Service) UserNextCourse(ctx context.Context, userID string) (Response[portal.Course], error) {
	today, err := s.UserTodayCourses(ctx, userID)
	if err != nil {
		return Response[portal.Course]{Meta: today.Meta}, err
	}
	course, ok := nextCourse(today.Data, s.now())
	if !ok {
		return Response[portal.Course]{Meta: today.Meta}, ErrNoNextCourse
	}
	return Response[portal.Course]{Data: course, Meta: today.Meta}, nil
}

// UserPresence classifies the roll-call state of the user's current course,
// preferring the user's own credentials for the presence page scrape.
func (s *Service) UserPresence(ctx context.Context, userID string) (Response[portal.PresenceStatus], error) {
	current, err := s.UserCurrentCourse(ctx, userID)
	if err != nil {
		return Response[portal.PresenceStatus]{Meta: current.Meta}, err
	}
	return s.presenceFor(ctx, current.Data, userID)
}

// ImportGroups scrapes the user's group list off their portal profile and
// records both the groups and the user's memberships as verified.
func (s *Service) ImportGroups(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ImportGroups")
	defer span.End()

	creds, err := s.creds.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if creds.IsZero() {
		return nil, portal.ErrMissingCredentials
	}

	groups, err := s.scraper.Groups(ctx, creds)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if err := s.dir.UpsertGroup(ctx, g, true); err != nil {
			return nil, err
		}
		if err := s.dir.UpsertMembership(ctx, userID, g, true); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// verifiedGroups returns the user's memberships in portal-verified groups.
func (s *Service) verifiedGroups(ctx context.Context, userID string) ([]Membership, error) {
	memberships, err := s.dir.UserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	var verified []Membership
	for _, m := range memberships {
		if m.GroupVerified {
			verified = append(verified, m)
		}
	}
	if len(verified) == 0 {
		return nil, ErrNoGroupFound
	}
	return verified, nil
}

// partitionUncached splits the user's uncached groups into those a single
// own-credential scrape will cover (verified memberships) and those that
// need a delegate.
func (s *Service) partitionUncached(verified []Membership, cached map[string]bool) (own, delegated []string) {
	for _, m := range verified {
		if cached[m.Group] {
			continue
		}
		if m.Verified {
			own = append(own, m.Group)
		} else {
			delegated = append(delegated, m.Group)
		}
	}
	return own, delegated
}

// currentCourse picks the course whose time range contains at, if any.
// Both bounds are inclusive: a course is still current at its exact end
// timestamp.
func currentCourse(courses []portal.Course, at time.Time) (portal.Course, bool) {
	for _, c := range courses {
		if !at.Before(c.Begin) && !at.After(c.End) {
			return c, true
		}
	}
	return portal.Course{}, false
}

// nextCourse picks the earliest course starting strictly after at. The
// input is sorted by start time so the first hit wins.
func nextCourse(courses []portal.Course, at time.Time) (portal.Course, bool) {
	for _, c := range courses {
		if c.Begin.After(at) {
			return c, true
		}
	}
	return portal.Course{}, false
}
