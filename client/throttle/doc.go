// Package throttle rate-limits the attempts a zapflux client sends.
//
// The limiter is a token bucket from [golang.org/x/time/rate] wrapped in
// an [http.RoundTripper]. Clients enable it with client.WithThrottle or a
// throttle section in their YAML config:
//
//	client:
//	  throttle:
//	    rps: 10
//	    burst: 5
//
// Every attempt, auth replays included, takes a token. An attempt that
// cannot get one before its context ends fails with [ErrWaitingFailed]
// wrapping the context cause, so a cancelled call stays distinguishable
// from a timeout.
package throttle
