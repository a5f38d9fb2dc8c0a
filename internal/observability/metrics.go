package observability

// MetricKey names a registered instrument.
type MetricKey string

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MPaymentReconcile        MetricKey = "payment_reconcile_total"
	MEventsHandled           MetricKey = "events_handled_total"
)

// MetricSpec describes how a key is registered with the metrics backend.
type MetricSpec struct {
	Key    MetricKey
	Help   string
	Labels []string
}

// CounterSpecs lists every counter the service emits.
var CounterSpecs = []MetricSpec{
	{MUsecaseRequests, "Total number of use case invocations.", []string{"use_case", "outcome"}},
	{MHTTPRequests, "Total number of HTTP requests.", []string{"method", "route", "status"}},
	{MExternalRequests, "Total number of calls to external peers.", []string{"peer", "endpoint", "outcome"}},
	{MPaymentReconcile, "Payment outcomes fed into reconciliation.", []string{"outcome", "applied"}},
	{MEventsHandled, "Event handler executions on the in-process bus.", []string{"event", "outcome"}},
}

// HistogramSpecs lists every histogram the service emits.
var HistogramSpecs = []MetricSpec{
	{MUsecaseDuration, "Duration of use case execution in seconds.", []string{"use_case"}},
	{MHTTPRequestDuration, "Duration of HTTP requests in seconds.", []string{"method", "route", "status"}},
	{MExternalRequestDuration, "Duration of external calls in seconds.", []string{"peer", "endpoint"}},
}
