// Package client provides the core implementation of the configurable HTTP
// client built on [net/http].
//
// # Building a Client
//
// Use [Build] to create the [Client] with functional options. Only one
// Client is live at a time; [Client.Dispose] frees the slot:
//
//	c, err := client.Build(
//		client.WithBaseURL("https://api.example.com/v1"),
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//	defer c.Dispose()
//
// # Making Requests
//
// Construct a [Request] with [NewRequest] and send it with [Send] or
// [Client.Do]:
//
//	req, err := client.NewRequest(http.MethodPost, "/items",
//		client.WithBody(body.JSON(item)),
//		client.WithProgress(func(pct float64) { ... }),
//	)
//	resp, err := client.Send(ctx, c, req, client.JSONDecoder[Item]())
//	if resp.HasError() { ... }
//
// # Failures
//
// Every failure is classified into a [Kind] and normalized to the
// [Kind.Shape] of that kind. With error safety enabled, the default, a
// failure comes back as a [Response] whose HasError reports true; with
// [WithErrorSafety](false) it is returned as a *[Failure] error.
//
// # Authentication
//
// An [Authenticator] attaches credentials before every attempt. When the
// server answers 401 the call is replayed up to [Config.MaxAuthRetries]
// times, calling [Refresher.Refresh] first when the Authenticator
// implements it.
//
// # Cancellation
//
// Attach a [cancel.Token] with [WithCancelToken]. Cancelling it interrupts
// the body stream at the next chunk boundary and the pending send.
// [Client.CancelAll] and [Client.Dispose] cancel every call in flight.
//
// # Observability
//
// Log lines carry a "tag" attribute and the call's X-Request-Id.
// [WithMetrics] registers the zap_* Prometheus collectors, including
// zap_throttle_wait_seconds when [WithThrottle] is set, and [WithTracer]
// records a "zap.send" span per attempt.
package client
