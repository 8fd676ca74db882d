package telemetry

import (
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentResty attaches a span to every request made by the client.
func InstrumentResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), "http "+req.Method)
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(finishResponseSpan)
	client.OnError(finishErrorSpan)
}

func headerAttributes(prefix string, headers http.Header) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(headers))
	for header, values := range headers {
		attrs = append(attrs, attribute.String(
			prefix+".header."+strings.ToLower(header),
			strings.Join(values, ", "),
		))
	}
	return attrs
}

func finishResponseSpan(_ *resty.Client, res *resty.Response) error {
	span := trace.SpanFromContext(res.Request.Context())
	defer span.End()

	// RawRequest is only populated once the request has gone out, so
	// request attributes cannot be set in OnBeforeRequest
	span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
	span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
	span.SetAttributes(headerAttributes("request", res.Request.Header)...)
	span.SetAttributes(headerAttributes("response", res.Header())...)
	return nil
}

func finishErrorSpan(req *resty.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	defer span.End()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(headerAttributes("request", req.Header)...)
	if req.RawRequest != nil {
		span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
	}
}
