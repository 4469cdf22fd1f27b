package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/adamwoolhether/zapflux"
	"github.com/adamwoolhether/zapflux/body"
	"github.com/adamwoolhether/zapflux/client"
	"github.com/adamwoolhether/zapflux/config"
	"github.com/adamwoolhether/zapflux/flux"
	"github.com/adamwoolhether/zapflux/progress"
)

// errFailed is returned when the response carries a failure. The failure
// itself has already been printed.
var errFailed = errors.New("request failed")

func run(cmd *cobra.Command, method, target string, f *flags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts := []client.Option{client.WithLogger(logger)}
	var auth config.Auth

	if f.configPath != "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return err
		}
		opts = append(opts, client.WithConfig(cfg.Client))
		auth = cfg.Auth
	}
	if f.token != "" {
		auth.AccessToken, auth.RefreshToken = f.token, ""
	}
	if f.timeout > 0 {
		opts = append(opts, client.WithTimeout(f.timeout))
	}
	if f.verbose {
		opts = append(opts, client.WithLogFlags(client.LogFlags{Requests: true, Responses: true, Errors: true}))
	}

	b, err := requestBody(f)
	if err != nil {
		return err
	}

	reqOpts := []client.RequestOption{client.WithBody(b)}
	if f.contentType != "" {
		reqOpts = append(reqOpts, client.WithContentType(f.contentType))
	}
	for _, h := range f.headers {
		k, v, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
		}
		reqOpts = append(reqOpts, client.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v)))
	}
	if f.progress {
		// Encode up front so the log can report bytes against the real size.
		enc, err := body.NewEncoder(1).Encode(ctx, b, f.contentType)
		if err != nil {
			return fmt.Errorf("encoding body: %w", err)
		}
		reqOpts[0] = client.WithBody(body.Raw(enc.Data, enc.ContentType))
		reqOpts = append(reqOpts, client.WithProgress(progress.Log(slog.New(slog.NewTextHandler(stderr, nil)), "uploading", enc.Length)))
	}

	var resp *client.Response[[]byte]
	if auth.AccessToken != "" {
		resp, err = sendAuthenticated(ctx, method, target, auth, opts, reqOpts)
	} else {
		resp, err = send(ctx, method, target, opts, reqOpts)
	}
	if err != nil {
		return err
	}

	return render(stdout, f, resp)
}

func send(ctx context.Context, method, target string, opts []client.Option, reqOpts []client.RequestOption) (*client.Response[[]byte], error) {
	c, err := zapflux.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	defer c.Dispose()

	req, err := client.NewRequest(method, target, reqOpts...)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, req)
}

func sendAuthenticated(ctx context.Context, method, target string, auth config.Auth, opts []client.Option, reqOpts []client.RequestOption) (*client.Response[[]byte], error) {
	session, authOpts := zapflux.FromAuth(auth)

	fx, err := zapflux.NewFlux(session, append(authOpts, flux.WithClientOptions(opts...))...)
	if err != nil {
		return nil, err
	}
	defer fx.Dispose()

	req, err := client.NewRequest(method, target, append(reqOpts, client.WithAuth())...)
	if err != nil {
		return nil, err
	}

	return flux.Send(ctx, fx, req, client.BytesDecoder)
}

// requestBody builds the payload from --data, --form and --file. Files
// switch the body to multipart with the form fields as plain parts.
func requestBody(f *flags) (body.Body, error) {
	if f.data != "" && (len(f.form) > 0 || len(f.files) > 0) {
		return nil, errors.New("--data cannot be combined with --form or --file")
	}

	if f.data != "" {
		data := []byte(f.data)
		if path, ok := strings.CutPrefix(f.data, "@"); ok {
			var err error
			if data, err = os.ReadFile(path); err != nil {
				return nil, fmt.Errorf("reading data file: %w", err)
			}
		}
		if gjson.ValidBytes(data) {
			return body.Raw(data, body.ContentTypeJSON), nil
		}
		return body.Raw(data, body.ContentTypeText), nil
	}

	fields := make(map[string]any, len(f.form))
	var parts []body.Part
	for _, kv := range f.form {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid form field %q, expected key=value", kv)
		}
		fields[k] = v
		parts = append(parts, body.Field(k, v))
	}

	if len(f.files) == 0 {
		if len(fields) == 0 {
			return body.Empty(), nil
		}
		return body.Form(fields), nil
	}

	for _, kv := range f.files {
		name, path, ok := strings.Cut(kv, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid file %q, expected field=path", kv)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file for %q: %w", name, err)
		}
		parts = append(parts, body.File(name, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), data))
	}

	return body.Multipart(parts...), nil
}

func render(stdout io.Writer, f *flags, resp *client.Response[[]byte]) error {
	if f.output != "" {
		if err := os.WriteFile(f.output, resp.Body, 0o644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}

	switch {
	case f.query != "" && !resp.HasError():
		v, err := query(resp.Body, f.query)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, v)
	case f.output != "":
		fmt.Fprintln(stdout, newScheme(colorOn(f, stdout)).status(resp))
	default:
		printResponse(stdout, newScheme(colorOn(f, stdout)), resp, f.include)
	}

	if resp.HasError() {
		return fmt.Errorf("%w: %w", errFailed, resp.Err())
	}

	return nil
}

func colorOn(f *flags, w io.Writer) bool {
	return !f.noColor && os.Getenv("NO_COLOR") == "" && isTerminal(w)
}
