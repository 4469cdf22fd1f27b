package main

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// flags holds the values shared by every method command.
type flags struct {
	configPath  string
	headers     []string
	token       string
	data        string
	form        []string
	files       []string
	contentType string
	timeout     time.Duration
	query       string
	include     bool
	output      string
	progress    bool
	noColor     bool
	verbose     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "zap",
		Short:         "Send HTTP requests through the zapflux client",
		Long:          "zap sends a single HTTP request and prints the response. Failures are reported with their kind and exit with status 1.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	pf.StringArrayVarP(&f.headers, "header", "H", nil, "request header in the form 'Key: Value' (repeatable)")
	pf.StringVar(&f.token, "token", "", "bearer token; JWTs have their expiry read from the exp claim")
	pf.StringVar(&f.contentType, "content-type", "", "override the request content type")
	pf.DurationVar(&f.timeout, "timeout", 0, "request timeout (default from config, else 30s)")
	pf.StringVarP(&f.query, "query", "q", "", "print only the value at this JSON path (gjson syntax)")
	pf.BoolVarP(&f.include, "include", "i", false, "print response headers")
	pf.StringVarP(&f.output, "output", "o", "", "write the response body to a file")
	pf.BoolVar(&f.progress, "progress", false, "log upload progress to stderr")
	pf.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log requests and responses to stderr")

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		root.AddCommand(methodCmd(method, false, &f))
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch} {
		root.AddCommand(methodCmd(method, true, &f))
	}

	return root
}

func methodCmd(method string, withBody bool, f *flags) *cobra.Command {
	name := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   name + " URL",
		Short: "Send a " + method + " request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, method, args[0], f)
		},
	}

	if withBody {
		cmd.Example = "  zap " + name + " https://api.example.com/users -d '{\"name\":\"ada\"}'\n" +
			"  zap " + name + " https://api.example.com/upload --form title=report --file doc=./report.pdf --progress"
		cmd.Flags().StringVarP(&f.data, "data", "d", "", "request body; @path reads it from a file")
		cmd.Flags().StringArrayVar(&f.form, "form", nil, "form field in the form key=value (repeatable)")
		cmd.Flags().StringArrayVar(&f.files, "file", nil, "multipart file in the form field=path (repeatable)")
	}

	return cmd
}
