package portal

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"lapelle-backend/lib/timezone"
)

func TestClassifyPresence(t *testing.T) {
	cases := []struct {
		name     string
		markers  presenceMarkers
		expected Status
	}{
		{
			name:     "noted present and call still running",
			markers:  presenceMarkers{NotedPresent: true},
			expected: StatusOpen,
		},
		{
			name:     "noted present but call closed",
			markers:  presenceMarkers{NotedPresent: true, CallClosed: true, Warning: true},
			expected: StatusClosed,
		},
		{
			name:     "call not yet open",
			markers:  presenceMarkers{NotYetOpen: true, Warning: true},
			expected: StatusNotStarted,
		},
		{
			name:     "bare warning box",
			markers:  presenceMarkers{Warning: true},
			expected: StatusClosed,
		},
		{
			name:     "validate button offered",
			markers:  presenceMarkers{ValidateButton: true},
			expected: StatusOpen,
		},
		{
			name:     "no markers at all",
			markers:  presenceMarkers{},
			expected: StatusClosed,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, classifyPresence(test.markers))
		})
	}
}

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractPresenceMarkers(t *testing.T) {
	cases := []struct {
		name     string
		html     string
		expected presenceMarkers
	}{
		{
			name: "marked present, call open",
			html: `<div id="body_presence">
				<div class="success alert-success">Vous avez été noté présent.</div>
			</div>`,
			expected: presenceMarkers{NotedPresent: true},
		},
		{
			name: "marked present, call closed",
			html: `<div id="body_presence">
				<div class="success alert-success">Vous avez été noté présent.</div>
				<div class="danger alert-danger">L'appel est clôturé.</div>
			</div>`,
			expected: presenceMarkers{NotedPresent: true, CallClosed: true, Warning: true},
		},
		{
			name: "not yet open",
			html: `<div id="body_presence">
				<div class="danger alert-danger">L'appel n'est pas encore ouvert.</div>
			</div>`,
			expected: presenceMarkers{NotYetOpen: true, Warning: true},
		},
		{
			name: "validate button",
			html: `<div id="body_presence">
				<span id="set-presence">Valider la présence</span>
			</div>`,
			expected: presenceMarkers{ValidateButton: true},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			doc := docFromHTML(t, test.html)
			form := doc.Find("#body_presence")
			require.Equal(t, test.expected, extractPresenceMarkers(form))
		})
	}
}

const presenceTableHTML = `
<table>
	<tbody id="body_presences">
		<tr>
			<td> 08:30 - 10:00 </td>
			<td> Théorie des graphes </td>
			<td> J. Dupont </td>
			<td><a href="/presences/4242">détail</a></td>
		</tr>
		<tr>
			<td>10:15 - 11:45</td>
			<td>Compilation</td>
			<td>M. Martin</td>
			<td><a href="https://www.leonard-de-vinci.net/presences/4243">détail</a></td>
		</tr>
		<tr><td></td></tr>
	</tbody>
</table>`

func TestParsePresenceRows(t *testing.T) {
	on := time.Date(2026, time.March, 2, 0, 0, 0, 0, timezone.Location)

	rows, err := parsePresenceRows(docFromHTML(t, presenceTableHTML), on)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "Théorie des graphes", rows[0].Subject)
	require.Equal(t, "J. Dupont", rows[0].Teacher)
	require.Equal(t, "https://www.leonard-de-vinci.net/presences/4242", rows[0].URL)
	require.Equal(t, time.Date(2026, time.March, 2, 8, 30, 0, 0, timezone.Location), rows[0].Begin)
	require.Equal(t, time.Date(2026, time.March, 2, 10, 0, 0, 0, timezone.Location), rows[0].End)

	require.Equal(t, "Compilation", rows[1].Subject)
	require.Equal(t, "https://www.leonard-de-vinci.net/presences/4243", rows[1].URL)
}

func TestMatchPresenceRow(t *testing.T) {
	on := time.Date(2026, time.March, 2, 0, 0, 0, 0, timezone.Location)
	rows, err := parsePresenceRows(docFromHTML(t, presenceTableHTML), on)
	require.NoError(t, err)

	course := Course{
		ID:      "42",
		Subject: "Théorie des graphes",
		Begin:   time.Date(2026, time.March, 2, 8, 30, 0, 0, timezone.Location),
		End:     time.Date(2026, time.March, 2, 10, 0, 0, 0, timezone.Location),
	}
	row := matchPresenceRow(rows, course)
	require.NotNil(t, row)
	require.Equal(t, "https://www.leonard-de-vinci.net/presences/4242", row.URL)

	// same subject but shifted bounds must not match
	course.Begin = course.Begin.Add(time.Hour)
	require.Nil(t, matchPresenceRow(rows, course))
}
