package schedule

import (
	"fmt"
	"sort"

	"lapelle-backend/services/portal"
)

var ErrWeekShapeMismatch = fmt.Errorf("cannot merge weeks with different day counts")

// MergeCourses unions course lists by portal id. When the same id appears in
// several sources the first-seen copy wins; the result is sorted ascending
// by start time. Inputs are never mutated.
func MergeCourses(lists ...[]portal.Course) []portal.Course {
	seen := make(map[string]struct{})
	var merged []portal.Course

	for _, list := range lists {
		for _, course := range list {
			if _, dup := seen[course.ID]; dup {
				continue
			}
			seen[course.ID] = struct{}{}
			merged = append(merged, course)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Begin.Before(merged[j].Begin)
	})
	return merged
}

// MergeWeeks zips weeks day-by-day, unioning each day's courses with the
// same id-dedup rule. Zero-value weeks are skipped. Two non-empty weeks with
// different day counts are a precondition violation: the sources scraped
// different calendar ranges and index-zipping them would silently misfile
// courses.
func MergeWeeks(weeks ...portal.Week) (portal.Week, error) {
	var merged portal.Week
	active := false

	for _, week := range weeks {
		if len(week.Days) == 0 {
			continue
		}
		if !active {
			merged = week
			active = true
			continue
		}
		if len(week.Days) != len(merged.Days) {
			return portal.Week{}, fmt.Errorf(
				"%w: %d vs %d", ErrWeekShapeMismatch, len(merged.Days), len(week.Days))
		}

		days := make([]portal.Day, len(merged.Days))
		for i := range merged.Days {
			days[i] = portal.Day{
				Date:    merged.Days[i].Date,
				Courses: MergeCourses(merged.Days[i].Courses, week.Days[i].Courses),
			}
		}
		merged.Days = days
	}

	return merged, nil
}

// coursesForGroup filters a merged course list down to the slice a single
// group is entitled to see.
func coursesForGroup(courses []portal.Course, group string) []portal.Course {
	var out []portal.Course
	for _, course := range courses {
		for _, tag := range course.Groups {
			if tag == group {
				out = append(out, course)
				break
			}
		}
	}
	return out
}

func weekForGroup(week portal.Week, group string) portal.Week {
	filtered := portal.Week{
		Start: week.Start,
		End:   week.End,
		Days:  make([]portal.Day, len(week.Days)),
	}
	for i, day := range week.Days {
		filtered.Days[i] = portal.Day{
			Date:    day.Date,
			Courses: coursesForGroup(day.Courses, group),
		}
	}
	return filtered
}
