package throttle_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/zapflux/client/throttle"
)

func ExampleNewRoundTripper() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var waits int
	rt, err := throttle.NewRoundTripper(
		throttle.Config{RPS: 5, Burst: 1},
		nil,
		http.DefaultTransport,
		throttle.WithWaitObserver(func(_ *http.Request, d time.Duration) {
			if d > time.Millisecond {
				waits++
			}
		}),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	hc := &http.Client{Transport: rt}
	for range 3 {
		resp, err := hc.Get(srv.URL)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		resp.Body.Close()
	}

	fmt.Println("throttled requests:", waits)
	// Output: throttled requests: 2
}
