package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/tidwall/gjson"

	"github.com/adamwoolhether/zapflux/client"
)

// scheme holds the colors used for response output.
type scheme struct {
	ok, warn, fail *color.Color
	headerKey      *color.Color
}

func newScheme(colored bool) *scheme {
	s := &scheme{
		ok:        color.New(color.FgGreen, color.Bold),
		warn:      color.New(color.FgYellow, color.Bold),
		fail:      color.New(color.FgRed, color.Bold),
		headerKey: color.New(color.FgCyan),
	}

	for _, c := range []*color.Color{s.ok, s.warn, s.fail, s.headerKey} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return s
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s *scheme) status(resp *client.Response[[]byte]) string {
	line := fmt.Sprintf("%d %s", resp.StatusCode, resp.Message)
	if resp.HasError() {
		line = fmt.Sprintf("%s (%s)", line, resp.Kind)
	}

	switch {
	case resp.HasError():
		return s.fail.Sprint(line)
	case resp.StatusCode >= 300:
		return s.warn.Sprint(line)
	default:
		return s.ok.Sprint(line)
	}
}

// printResponse writes the status line, the headers when include is set,
// and the body. JSON bodies are pretty printed.
func printResponse(w io.Writer, s *scheme, resp *client.Response[[]byte], include bool) {
	fmt.Fprintln(w, s.status(resp))

	if include {
		keys := make([]string, 0, len(resp.Header))
		for k := range resp.Header {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", s.headerKey.Sprint(k), strings.Join(resp.Header[k], ", "))
		}
		fmt.Fprintln(w)
	}

	if len(resp.Body) == 0 {
		return
	}

	if gjson.ValidBytes(resp.Body) {
		fmt.Fprintln(w, strings.TrimRight(gjson.GetBytes(resp.Body, "@pretty").Raw, "\n"))
		return
	}

	fmt.Fprintln(w, string(resp.Body))
}

// query extracts path from a JSON body.
func query(data []byte, path string) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("query %q: response body is not JSON", path)
	}

	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return "", fmt.Errorf("query %q: no match", path)
	}

	return res.String(), nil
}
