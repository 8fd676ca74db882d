package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func requestBody(req *http.Request) string {
	// GetBody is nil for bodyless requests, which is most of them
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err)
	}
	return string(raw)
}

// formatHttpMessage renders a request/response pair as a readable
// transcript for debugging scrape sessions.
func formatHttpMessage(res *resty.Response) string {
	finalUrl := res.Request.URL
	if redirected, err := res.RawResponse.Location(); err == nil {
		finalUrl = redirected.String()
	}

	var out strings.Builder
	fmt.Fprintf(&out, "---- REQUEST ----\n\n%s %s\n\n", res.Request.Method, res.Request.URL)
	writeHeaders(&out, res.Request.RawRequest.Header)
	out.WriteString("\n")
	out.WriteString(requestBody(res.Request.RawRequest))
	fmt.Fprintf(&out, "\n\n---- RESPONSE ----\n\n%d %s\n\n", res.StatusCode(), finalUrl)
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(res.String())
	return out.String()
}
