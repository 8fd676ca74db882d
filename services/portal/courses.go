package portal

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel/codes"

	"lapelle-backend/lib/scrape"
	"lapelle-backend/lib/textutil"
	"lapelle-backend/lib/timezone"
)

const (
	dayColumnSelector = ".b-dayview-day-detail"
	eventSelector     = ".b-cal-event-wrap"
	eventTipSelector  = "#b-calendar-1-event-tip"
)

const clickLeft = proto.InputMouseButtonLeft

// TodayCourses extracts today's column of the week calendar.
func (s *Session) TodayCourses(ctx context.Context) ([]Course, error) {
	ctx, span := tracer.Start(ctx, "portal:TodayCourses")
	defer span.End()

	days, err := s.calendarDays(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	idx := weekdayIndex(timezone.Now())
	if idx >= len(days) {
		// weekend outside the rendered columns means no courses today
		return nil, nil
	}

	day, err := s.extractDay(ctx, days[idx])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return day.Courses, nil
}

// WeekCourses extracts the whole rendered week, one day per calendar column.
func (s *Session) WeekCourses(ctx context.Context) (Week, error) {
	ctx, span := tracer.Start(ctx, "portal:WeekCourses")
	defer span.End()

	days, err := s.calendarDays(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Week{}, err
	}
	if len(days) == 0 {
		return Week{}, fmt.Errorf("the calendar rendered no day columns")
	}

	week := Week{}
	for _, column := range days {
		day, err := s.extractDay(ctx, column)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return Week{}, err
		}
		week.Days = append(week.Days, day)
	}

	week.Start = week.Days[0].Date
	week.End = week.Days[len(week.Days)-1].Date
	return week, nil
}

func (s *Session) calendarDays(ctx context.Context) ([]*rod.Element, error) {
	scr := scrape.Session{Page: s.page}

	if _, err := scr.Navigate(ctx, scrape.NavigateOptions{
		URL:     calendarURL,
		Timeout: 10 * time.Second,
	}); err != nil {
		return nil, err
	}

	// the calendar widget renders client-side well after page load
	return scr.GetAll(ctx, dayColumnSelector, scrape.GetAllOptions{
		Timeout: 30 * time.Second,
	})
}

func (s *Session) extractDay(ctx context.Context, column *rod.Element) (Day, error) {
	date, err := requiredAttribute(column, "data-date")
	if err != nil {
		return Day{}, err
	}
	parsed, err := time.ParseInLocation("2006-01-02", date, timezone.Location)
	if err != nil {
		return Day{}, fmt.Errorf("malformed day date %q: %w", date, err)
	}

	events, err := column.Elements(eventSelector)
	if err != nil {
		return Day{}, err
	}

	day := Day{Date: parsed}
	for _, event := range events {
		course, err := s.extractCourse(ctx, event, parsed)
		if err != nil {
			return Day{}, err
		}
		day.Courses = append(day.Courses, course)
	}
	return day, nil
}

var subjectTagSuffix = regexp.MustCompile(`\s*\[.*?\]$`)

// extractCourse reads one calendar event. The interesting fields (campus,
// teachers, groups, conferencing link) only exist inside the event's detail
// tip, so each event costs an open/read/close round trip. The link is
// optional and must not fail the extraction when absent.
func (s *Session) extractCourse(ctx context.Context, event *rod.Element, date time.Time) (Course, error) {
	scr := scrape.Session{Page: s.page}

	if err := event.Click(clickLeft, 1); err != nil {
		return Course{}, err
	}
	if !scr.AwaitElement(ctx, eventTipSelector, 5*time.Second) {
		return Course{}, fmt.Errorf("the event detail tip never opened")
	}
	tip, err := scr.GetOne(ctx, eventTipSelector, scrape.GetOptions{})
	if err != nil {
		return Course{}, err
	}
	info, err := scr.GetOne(ctx, ".b-eventtip-content", scrape.GetOptions{Parent: tip})
	if err != nil {
		return Course{}, err
	}

	campus, err := elementText(info, "dd:nth-child(6)")
	if err != nil {
		return Course{}, err
	}
	teachers, err := elementText(info, "dd:nth-child(8)")
	if err != nil {
		return Course{}, err
	}
	groups, err := elementText(tip, "dd:nth-child(10)")
	if err != nil {
		return Course{}, err
	}

	meetingLink := ""
	link, err := scr.GetOne(ctx, "dd:nth-child(12) a", scrape.GetOptions{Parent: tip, Safe: true})
	if err != nil {
		return Course{}, err
	}
	if link != nil {
		href, err := link.Attribute("href")
		if err == nil && href != nil {
			meetingLink = *href
		}
	}

	if err := closeEventTip(tip); err != nil {
		return Course{}, err
	}

	id, err := requiredAttribute(event, "data-event-id")
	if err != nil {
		return Course{}, err
	}
	beginText, err := elementText(event, ".b-event-time")
	if err != nil {
		return Course{}, err
	}
	endText, err := elementText(event, ".b-cal-event-desc-complex > div")
	if err != nil {
		return Course{}, err
	}
	subject, err := elementText(event, ".b-event-name")
	if err != nil {
		return Course{}, err
	}
	rooms, err := elementText(event, ".b-cal-event-desc-complex > span:last-child")
	if err != nil {
		return Course{}, err
	}

	begin, err := parseClock(beginText, date)
	if err != nil {
		return Course{}, err
	}
	end, err := parseClock(endText, date)
	if err != nil {
		return Course{}, err
	}

	return Course{
		ID:          id,
		Begin:       begin,
		End:         end,
		Subject:     subjectTagSuffix.ReplaceAllString(subject, ""),
		Teachers:    textutil.SplitList(teachers),
		Rooms:       textutil.SplitList(rooms),
		Campus:      textutil.SplitList(campus),
		Groups:      textutil.SplitList(groups),
		MeetingLink: meetingLink,
	}, nil
}

// Groups reads the group names listed on the user's profile page.
func (s *Session) Groups(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "portal:Groups")
	defer span.End()

	scr := scrape.Session{Page: s.page}
	if _, err := scr.Navigate(ctx, scrape.NavigateOptions{
		URL:     profileURL,
		Timeout: 10 * time.Second,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	page := s.page.Context(ctx).Timeout(10 * time.Second)
	defer page.CancelTimeout()

	// the profile page has no stable ids, the groups panel is only
	// addressable through its heading text
	if _, err := page.ElementX(`//*[text()='Mes groupes']/parent::*/parent::*`); err != nil {
		err = fmt.Errorf("the groups panel never appeared: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	headings, err := page.ElementsX(`//*[text()='Mes groupes']/parent::*/parent::*` +
		`//div[contains(@class, 'active') and not(ancestor::div[contains(@class, 'tab-pane')])]` +
		`//div[contains(@class, 'accordion-heading')]`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var names []string
	for _, heading := range headings {
		text, err := heading.Text()
		if err != nil {
			return nil, err
		}
		if name := textutil.CleanText(text); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func requiredAttribute(el *rod.Element, name string) (string, error) {
	value, err := el.Attribute(name)
	if err != nil {
		return "", err
	}
	if value == nil || *value == "" {
		return "", fmt.Errorf("element is missing required attribute %q", name)
	}
	return *value, nil
}

func elementText(parent *rod.Element, selector string) (string, error) {
	el, err := parent.Element(selector)
	if err != nil {
		return "", fmt.Errorf("no element matches %q: %w", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return textutil.CleanText(text), nil
}

func closeEventTip(tip *rod.Element) error {
	closeButton, err := tip.Element("button[data-ref='close']")
	if err != nil {
		return fmt.Errorf("the event tip close button never appeared: %w", err)
	}
	return closeButton.Click(clickLeft, 1)
}
