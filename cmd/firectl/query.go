package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const clientTimeout = 60 * time.Second

// newQueryCmd sends a free-text query to a running server.
func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <text>",
		Short: "Run a fire danger query against the service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]string{"query": strings.Join(args, " ")})
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: clientTimeout}
			resp, err := client.Post(serverAddr+"/v1/query", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("query service: %w", err)
			}
			defer resp.Body.Close()

			return printJSONResponse(resp)
		},
	}
}

// newInvalidateCmd removes one entry from the server's result cache.
func newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <key>",
		Short: "Invalidate a cached query result by its fingerprint key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodDelete,
				serverAddr+"/v1/cache/"+args[0], nil)
			if err != nil {
				return err
			}

			client := &http.Client{Timeout: clientTimeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("invalidate cache entry: %w", err)
			}
			defer resp.Body.Close()

			return printJSONResponse(resp)
		},
	}
}

func printJSONResponse(resp *http.Response) error {
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		os.Stdout.Write(payload)
		return nil
	}
	pretty.WriteByte('\n')
	_, err = os.Stdout.Write(pretty.Bytes())
	return err
}
