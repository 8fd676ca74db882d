package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"lapelle-backend/lib/htmlutil"
	"lapelle-backend/lib/restyutil"
	"lapelle-backend/lib/textutil"
	"lapelle-backend/lib/timezone"
)

var ErrPresenceUnavailable = fmt.Errorf("no attendance row matches this course")

// presenceRow is one row of the portal's raw attendance listing.
type presenceRow struct {
	Begin   time.Time
	End     time.Time
	Subject string
	Teacher string
	URL     string
}

// presenceMarkers are the flags readable off an attendance form page. The
// status classification is a pure function over these so the decision table
// stays testable without a portal.
type presenceMarkers struct {
	// NotedPresent: the success box says the student was marked present.
	NotedPresent bool
	// CallClosed: the warning box says the roll call is over.
	CallClosed bool
	// NotYetOpen: the warning box says the roll call has not started.
	NotYetOpen bool
	// Warning: any warning box is present at all.
	Warning bool
	// ValidateButton: the "validate presence" control is offered.
	ValidateButton bool
}

// classifyPresence maps marker flags onto a status. Anything that does not
// positively read as open or not-started is reported closed, which is the
// portal's own fallback behavior.
func classifyPresence(m presenceMarkers) Status {
	switch {
	case m.NotedPresent && m.CallClosed:
		return StatusClosed
	case m.NotedPresent:
		return StatusOpen
	case m.NotYetOpen:
		return StatusNotStarted
	case m.Warning:
		return StatusClosed
	case m.ValidateButton:
		return StatusOpen
	default:
		return StatusClosed
	}
}

// Presence resolves the attendance state of one course: it re-reads the raw
// attendance rows, finds the row matching the course by subject and exact
// time bounds, then follows the row's form link and classifies the page.
//
// The attendance pages are plain server-rendered HTML, so they are fetched
// over HTTP with the browser session's cookies instead of burning pool time
// on page navigations.
func (s *Session) Presence(ctx context.Context, course Course) (PresenceStatus, error) {
	ctx, span := tracer.Start(ctx, "portal:Presence")
	defer span.End()

	client, err := s.httpClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PresenceStatus{}, err
	}

	rows, err := fetchPresenceRows(ctx, client)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PresenceStatus{}, err
	}

	row := matchPresenceRow(rows, course)
	if row == nil {
		return PresenceStatus{}, ErrPresenceUnavailable
	}

	doc, err := fetchDocument(ctx, client, row.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PresenceStatus{}, err
	}

	form := doc.Find("#body_presence")
	if form.Length() == 0 {
		return PresenceStatus{}, ErrPresenceUnavailable
	}

	return PresenceStatus{
		Begin:   row.Begin,
		End:     row.End,
		Subject: row.Subject,
		Teacher: row.Teacher,
		FormURL: row.URL,
		Status:  classifyPresence(extractPresenceMarkers(form)),
	}, nil
}

// httpClient builds a resty client carrying the authenticated browser
// session's cookies.
func (s *Session) httpClient() (*resty.Client, error) {
	if s.page == nil {
		return nil, fmt.Errorf("portal session has no live page")
	}

	cookies, err := proto.NetworkGetCookies{}.Call(s.page)
	if err != nil {
		return nil, fmt.Errorf("export browser cookies: %w", err)
	}

	client := restyutil.NewScrapeClient("services/portal", restyInstrumentOutput)
	client.SetBaseURL(baseURL)

	for _, c := range cookies.Cookies {
		client.SetCookie(&http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return client, nil
}

func fetchDocument(ctx context.Context, client *resty.Client, target string) (*goquery.Document, error) {
	res, err := client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %q", res.StatusCode(), target)
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}

func fetchPresenceRows(ctx context.Context, client *resty.Client) ([]presenceRow, error) {
	doc, err := fetchDocument(ctx, client, presencesURL)
	if err != nil {
		return nil, err
	}
	return parsePresenceRows(doc, timezone.Now())
}

// parsePresenceRows reads the "#body_presences" table: clock range, subject,
// teacher and the link to the attendance form, one row per course.
func parsePresenceRows(doc *goquery.Document, on time.Time) ([]presenceRow, error) {
	var rows []presenceRow
	var parseErr error

	doc.Find("#body_presences tr").Each(func(_ int, sel *goquery.Selection) {
		if parseErr != nil {
			return
		}

		clock := strings.TrimSpace(sel.Find("td:nth-child(1)").Text())
		if clock == "" {
			return // header or filler row
		}
		begin, end, err := parseClockRange(clock, on)
		if err != nil {
			parseErr = err
			return
		}

		anchors := htmlutil.GetAnchors(sel.Find("td:nth-child(4) a"))
		if len(anchors) == 0 {
			return
		}

		rows = append(rows, presenceRow{
			Begin:   begin,
			End:     end,
			Subject: textutil.CleanText(sel.Find("td:nth-child(2)").Text()),
			Teacher: textutil.CleanText(sel.Find("td:nth-child(3)").Text()),
			URL:     absoluteURL(anchors[0].Href),
		})
	})

	return rows, parseErr
}

// matchPresenceRow pairs a course with its attendance row by subject and
// exact time bounds.
func matchPresenceRow(rows []presenceRow, course Course) *presenceRow {
	for i := range rows {
		row := &rows[i]
		if row.Subject == course.Subject &&
			row.Begin.Equal(course.Begin) &&
			row.End.Equal(course.End) {
			return row
		}
	}
	return nil
}

func extractPresenceMarkers(form *goquery.Selection) presenceMarkers {
	warning := form.Find(".danger.alert-danger")
	warningText := warning.Text()
	successText := form.Find(".success.alert-success").Text()
	validateText := form.Find("span#set-presence").Text()

	return presenceMarkers{
		NotedPresent:   strings.Contains(successText, "avez été noté présent"),
		CallClosed:     strings.Contains(warningText, "L'appel est clôturé"),
		NotYetOpen:     strings.Contains(warningText, "pas encore ouvert"),
		Warning:        warning.Length() > 0,
		ValidateButton: strings.Contains(validateText, "Valider la présence"),
	}
}

func absoluteURL(href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
