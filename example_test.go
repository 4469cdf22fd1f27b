package zapflux_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/zapflux"
	"github.com/adamwoolhether/zapflux/client"
	"github.com/adamwoolhether/zapflux/flux"
)

func ExampleNewClient() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"msg":"hello"}`)
	}))
	defer ts.Close()

	c, err := zapflux.NewClient(client.WithBaseURL(ts.URL), client.WithTimeout(5*time.Second))
	if err != nil {
		fmt.Println("build error:", err)
		return
	}
	defer c.Dispose()

	req, err := client.NewRequest(http.MethodGet, "/greeting")
	if err != nil {
		fmt.Println("request error:", err)
		return
	}

	resp, err := client.Send(context.Background(), c, req, client.JSONDecoder[struct{ Msg string }]())
	if err != nil {
		fmt.Println("send error:", err)
		return
	}

	fmt.Println(resp.StatusCode, resp.Data.Msg)
	// Output: 200 hello
}

func ExampleNewFlux() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"auth":%q}`, r.Header.Get("Authorization"))
	}))
	defer ts.Close()

	session := func(context.Context) (*flux.Session, error) {
		return &flux.Session{AccessToken: "t0k3n"}, nil
	}

	f, err := zapflux.NewFlux(session, flux.WithClientOptions(client.WithBaseURL(ts.URL)))
	if err != nil {
		fmt.Println("build error:", err)
		return
	}
	defer f.Dispose()

	resp, err := flux.Get[struct{ Auth string }](context.Background(), f, "/me")
	if err != nil {
		fmt.Println("send error:", err)
		return
	}

	fmt.Println(resp.Data.Auth)
	// Output: Bearer t0k3n
}
