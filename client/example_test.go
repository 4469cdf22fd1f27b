package client_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/adamwoolhether/zapflux/body"
	"github.com/adamwoolhether/zapflux/client"
)

func ExampleBuild() {
	c, err := client.Build(
		client.WithTimeout(10*time.Second),
		client.WithUserAgent("example/1.0"),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Dispose()

	_, err = client.Build()
	fmt.Println(err)
	// Output: client already exists
}

func ExampleURL() {
	u := client.URL("https", "example.com", "/api/v1",
		client.WithPort(8443),
		client.WithQueryStrings(map[string]string{"key": "value"}),
	)

	fmt.Println(u.String())
	// Output: https://example.com:8443/api/v1?key=value
}

func ExampleNewRequest() {
	type payload struct {
		Name string `json:"name"`
	}

	req, err := client.NewRequest(http.MethodPost, "/users",
		client.WithPayload(payload{Name: "alice"}),
		client.WithHeaders(map[string][]string{"X-Trace": {"abc123"}}),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(req.Method, req.URL.Path, req.Body.Kind())
	// Output: POST /users json
}

func ExampleSend() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer ts.Close()

	c, err := client.Build(client.WithBaseURL(ts.URL))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Dispose()

	req, _ := client.NewRequest(http.MethodGet, "/health")

	type status struct{ Status string }
	resp, err := client.Send(context.Background(), c, req, client.JSONDecoder[status]())
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp.StatusCode, resp.Data.Status)
	// Output: 200 ok
}

func ExampleClient_Do_notFound() {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	c, err := client.Build(client.WithLogFlags(client.LogFlags{}))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer c.Dispose()

	req, _ := client.NewRequest(http.MethodPost, ts.URL+"/missing", client.WithBody(body.Form(map[string]any{"q": "zap"})))

	resp, err := c.Do(context.Background(), req)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(resp.HasError(), resp.StatusCode, resp.Kind)
	// Output: true 404 client
}
