package schedule

import (
	"context"

	"lapelle-backend/lib/keychain"
	"lapelle-backend/services/portal"
)

// GroupsTodayCourses resolves today's merged course list for a set of
// groups. Fresh cache entries are served directly; the rest are scraped
// through delegates. Groups for which no data could be produced end up in
// Meta.Unprocessed rather than failing the query.
func (s *Service) GroupsTodayCourses(ctx context.Context, groups []string) (Response[[]portal.Course], error) {
	ctx, span := tracer.Start(ctx, "GroupsTodayCourses")
	defer span.End()

	var data []portal.Course
	processed := make(map[string]bool)
	var remaining []string

	for _, g := range groups {
		if courses, ok := s.cache.today.Get(g); ok {
			data = MergeCourses(data, courses)
			processed[g] = true
		} else {
			remaining = append(remaining, g)
		}
	}

	if len(remaining) > 0 {
		members, err := s.dir.GroupMembers(ctx, remaining)
		if err != nil {
			return Response[[]portal.Course]{}, err
		}
		covered := s.delegateAcross(ctx, members, func(ctx context.Context, creds keychain.Credentials) error {
			courses, err := s.scraper.TodayCourses(ctx, creds)
			if err != nil {
				return err
			}
			data = MergeCourses(data, courses)
			return nil
		})
		for g := range covered {
			processed[g] = true
			s.cache.today.Add(g, coursesForGroup(data, g))
		}
	}

	return Response[[]portal.Course]{Data: data, Meta: unprocessedMeta(groups, processed)}, nil
}

// GroupsWeekCourses is the week-range variant of GroupsTodayCourses.
func (s *Service) GroupsWeekCourses(ctx context.Context, groups []string) (Response[portal.Week], error) {
	ctx, span := tracer.Start(ctx, "GroupsWeekCourses")
	defer span.End()

	var data portal.Week
	processed := make(map[string]bool)
	var remaining []string

	for _, g := range groups {
		if week, ok := s.cache.week.Get(g); ok {
			merged, err := MergeWeeks(data, week)
			if err != nil {
				return Response[portal.Week]{}, err
			}
			data = merged
			processed[g] = true
		} else {
			remaining = append(remaining, g)
		}
	}

	if len(remaining) > 0 {
		members, err := s.dir.GroupMembers(ctx, remaining)
		if err != nil {
			return Response[portal.Week]{}, err
		}
		covered := s.delegateAcross(ctx, members, func(ctx context.Context, creds keychain.Credentials) error {
			week, err := s.scraper.WeekCourses(ctx, creds)
			if err != nil {
				return err
			}
			merged, err := MergeWeeks(data, week)
			if err != nil {
				return err
			}
			data = merged
			return nil
		})
		for g := range covered {
			processed[g] = true
			s.cache.week.Add(g, weekForGroup(data, g))
		}
	}

	return Response[portal.Week]{Data: data, Meta: unprocessedMeta(groups, processed)}, nil
}

// GroupsCurrentCourse narrows today's merged list down to the course in
// progress right now.
func (s *Service) GroupsCurrentCourse(ctx context.Context, groups []string) (Response[portal.Course], error) {
	today, err := s.GroupsTodayCourses(ctx, groups)
	if err != nil {
		return Response[portal.Course]{}, err
	}
	if len(today.Data) == 0 {
		return Response[portal.Course]{Meta: today.Meta}, ErrNoCourseToday
	}
	course, ok := currentCourse(today.Data, s.now())
	if !ok {
		return Response[portal.Course]{Meta: today.Meta}, ErrNoCurrentCourse
	}
	return Response[portal.Course]{Data: course, Meta: today.Meta}, nil
}

// GroupsNextCourse returns the first course of today that has not started
// yet.
func (s *Service) GroupsNextCourse(ctx context.Context, groups []string) (Response[portal.Course], error) {
	today, err := s.GroupsTodayCourses(ctx, groups)
	if err != nil {
		return Response[portal.Course]{}, err
	}
	if len(today.Data) == 0 {
		return Response[portal.Course]{Meta: today.Meta}, ErrNoCourseToday
	}
	course, ok := nextCourse(today.Data, s.now())
	if !ok {
		return Response[portal.Course]{Meta: today.Meta}, ErrNoNextCourse
	}
	return Response[portal.Course]{Data: course, Meta: today.Meta}, nil
}

// GroupsPresence classifies the roll-call state of the course the given
// groups are sitting in right now.
func (s *Service) GroupsPresence(ctx context.Context, groups []string) (Response[portal.PresenceStatus], error) {
	current, err := s.GroupsCurrentCourse(ctx, groups)
	if err != nil {
		return Response[portal.PresenceStatus]{Meta: current.Meta}, err
	}
	return s.presenceFor(ctx, current.Data, "")
}

func unprocessedMeta(asked []string, processed map[string]bool) Meta {
	var meta Meta
	for _, g := range asked {
		if !processed[g] {
			meta.Unprocessed = append(meta.Unprocessed, g)
		}
	}
	return meta
}
