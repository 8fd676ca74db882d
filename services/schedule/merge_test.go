package schedule

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"lapelle-backend/lib/timezone"
	"lapelle-backend/services/portal"
)

func courseAt(id string, hour int, groups ...string) portal.Course {
	begin := time.Date(2026, 3, 2, hour, 30, 0, 0, timezone.Location)
	return portal.Course{
		ID:      id,
		Begin:   begin,
		End:     begin.Add(90 * time.Minute),
		Subject: "Subject " + id,
		Groups:  groups,
	}
}

func TestMergeCoursesDedupsAndSorts(t *testing.T) {
	early := courseAt("1", 8)
	late := courseAt("2", 14)
	duplicate := courseAt("1", 8)
	duplicate.Subject = "renamed elsewhere"

	merged := MergeCourses(
		[]portal.Course{late},
		[]portal.Course{duplicate, early},
	)

	require.Len(t, merged, 2)
	require.Equal(t, "1", merged[0].ID)
	require.Equal(t, "2", merged[1].ID)
	// first-seen copy wins over later duplicates
	require.Equal(t, "renamed elsewhere", merged[0].Subject)
}

func TestMergeCoursesIdempotent(t *testing.T) {
	list := []portal.Course{courseAt("1", 8), courseAt("2", 10)}
	once := MergeCourses(list)
	twice := MergeCourses(once, once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("merge is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMergeCoursesDoesNotMutateInputs(t *testing.T) {
	a := []portal.Course{courseAt("2", 14), courseAt("1", 8)}
	MergeCourses(a)
	require.Equal(t, "2", a[0].ID)
}

func TestMergeWeeksUnionsByDay(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, timezone.Location)
	a := portal.Week{Days: []portal.Day{
		{Date: day, Courses: []portal.Course{courseAt("1", 8)}},
		{Date: day.AddDate(0, 0, 1)},
	}}
	b := portal.Week{Days: []portal.Day{
		{Date: day, Courses: []portal.Course{courseAt("1", 8), courseAt("2", 10)}},
		{Date: day.AddDate(0, 0, 1), Courses: []portal.Course{courseAt("3", 9)}},
	}}

	merged, err := MergeWeeks(a, portal.Week{}, b)
	require.NoError(t, err)
	require.Len(t, merged.Days, 2)
	require.Len(t, merged.Days[0].Courses, 2)
	require.Len(t, merged.Days[1].Courses, 1)
}

func TestMergeWeeksShapeMismatch(t *testing.T) {
	a := portal.Week{Days: make([]portal.Day, 5)}
	b := portal.Week{Days: make([]portal.Day, 6)}
	_, err := MergeWeeks(a, b)
	require.ErrorIs(t, err, ErrWeekShapeMismatch)
}

func TestCoursesForGroup(t *testing.T) {
	courses := []portal.Course{
		courseAt("1", 8, "ESILV-A1"),
		courseAt("2", 10, "ESILV-A2"),
		courseAt("3", 14, "ESILV-A1", "ESILV-A2"),
	}
	filtered := coursesForGroup(courses, "ESILV-A1")
	require.Len(t, filtered, 2)
	require.Equal(t, "1", filtered[0].ID)
	require.Equal(t, "3", filtered[1].ID)
}

func TestCurrentAndNextCourse(t *testing.T) {
	courses := []portal.Course{courseAt("1", 8), courseAt("2", 14)}

	during := time.Date(2026, 3, 2, 9, 0, 0, 0, timezone.Location)
	current, ok := currentCourse(courses, during)
	require.True(t, ok)
	require.Equal(t, "1", current.ID)

	next, ok := nextCourse(courses, during)
	require.True(t, ok)
	require.Equal(t, "2", next.ID)

	// a course is still current at its exact end timestamp
	atEnd, ok := currentCourse(courses, courses[0].End)
	require.True(t, ok)
	require.Equal(t, "1", atEnd.ID)

	between := time.Date(2026, 3, 2, 11, 0, 0, 0, timezone.Location)
	_, ok = currentCourse(courses, between)
	require.False(t, ok)

	evening := time.Date(2026, 3, 2, 20, 0, 0, 0, timezone.Location)
	_, ok = nextCourse(courses, evening)
	require.False(t, ok)
}
