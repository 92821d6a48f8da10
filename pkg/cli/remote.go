package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/docsearch/pkg/httputil"
	"github.com/platinummonkey/docsearch/pkg/search"
)

func newRemoteCommand(out io.Writer) *Command {
	cmd := newCommand("remote", "Search a running docsearch server", out)

	server := cmd.Flags.String("server", "http://localhost:8080", "Server URL")
	limit := cmd.Flags.Int("limit", 10, "Maximum number of results")
	asJSON := cmd.Flags.Bool("json", false, "Print the full response as JSON")
	timeout := cmd.Flags.Duration("timeout", 10*time.Second, "Request timeout")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		client := &http.Client{
			Timeout:   *timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		resp, err := remoteSearch(client, *server, strings.Join(cmd.Flags.Args(), " "), *limit)
		if err != nil {
			return err
		}
		return printResponse(out, resp, *asJSON)
	}

	return cmd
}

func remoteSearch(client *http.Client, server, text string, limit int) (*search.Response, error) {
	q := url.Values{}
	q.Set("q", text)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	searchURL := strings.TrimRight(server, "/") + "/search?" + q.Encode()

	resp, err := client.Get(searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to query server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body httputil.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
			return nil, fmt.Errorf("server returned %s", resp.Status)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}

	var result search.Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
