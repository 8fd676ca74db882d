package restyutil

import (
	"time"

	"github.com/go-resty/resty/v2"

	"lapelle-backend/lib/telemetry"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// NewScrapeClient builds the resty client used against scraped sites:
// browser user agent, generous timeout, otel spans per request, and an
// optional request/response dump sink for debugging.
func NewScrapeClient(tracerName string, output InstrumentOutput) *resty.Client {
	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, tracerName)
	InstrumentClient(client, output)

	return client
}
