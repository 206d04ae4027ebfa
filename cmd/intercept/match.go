package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/getmockd/intercept/pkg/config"
	"github.com/getmockd/intercept/pkg/registry"
	"github.com/getmockd/intercept/pkg/stub"
	"github.com/spf13/cobra"
)

func newMatchCmd(log func() *slog.Logger) *cobra.Command {
	var (
		method   string
		rawURL   string
		headers  []string
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   "match --url URL [flags] <file|glob>...",
		Short: "Dry-run a request against rule files and show the winning rule",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := config.Load(args...)
			if err != nil {
				return err
			}
			log().Debug("rules loaded", "count", len(rules))
			view, err := buildView(method, rawURL, headers, bodyFile)
			if err != nil {
				return err
			}

			reg := registry.New()
			reg.Set(rules...)

			out := cmd.OutOrStdout()
			if rule := reg.ResolveEligible(view); rule != nil {
				fmt.Fprintf(out, "matched rule %s (%s)\n", rule.ID, rule.Outcome.Kind)
				return nil
			}
			if rule := reg.ResolveAny(view); rule != nil {
				fmt.Fprintf(out, "no eligible rule; exhausted rule %s matches\n", rule.ID)
				return nil
			}
			fmt.Fprintln(out, "no rule matches")
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "request method")
	cmd.Flags().StringVarP(&rawURL, "url", "u", "", "absolute request URL (required)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header, key:value (repeatable)")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "file holding the request body")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func buildView(method, rawURL string, headers []string, bodyFile string) (stub.RequestView, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return stub.RequestView{}, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	header := make(map[string]string, len(headers))
	for _, h := range headers {
		key, value, found := strings.Cut(h, ":")
		if !found {
			return stub.RequestView{}, fmt.Errorf("invalid header %q: want key:value", h)
		}
		header[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	var body []byte
	if bodyFile != "" {
		body, err = os.ReadFile(bodyFile)
		if err != nil {
			return stub.RequestView{}, err
		}
	}

	return stub.RequestView{Method: method, URL: u, Header: header, Body: body}, nil
}
