// Command vadctl is a thin HTTP client for the VAD service's control
// surface: status, start (with optional key=value options), and stop.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:5173"

func serverURL() string {
	if v := os.Getenv("SERVER_URL"); v != "" {
		return v
	}
	return defaultServerURL
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	rootCmd := &cobra.Command{
		Use:           "vadctl",
		Short:         "Control a running vad-service instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(statusCmd(), startCmd(), stopCmd())

	if len(os.Args) == 1 {
		rootCmd.Usage()
		os.Exit(0)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRequest(http.MethodGet, "/api/v1/vad/status", nil)
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRequest(http.MethodPost, "/api/v1/vad/stop", nil)
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [key=value ...]",
		Short: "Start the pipeline, optionally overriding options",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := parseKeyValueArgs(args)
			if err != nil {
				return err
			}
			return doRequest(http.MethodPost, "/api/v1/vad/start", body)
		},
	}
}

// parseKeyValueArgs turns ["speechThreshold=0.4", "outDir=/tmp/x"] into a
// JSON object, parsing each value as a number when it parses cleanly as
// one and as a string otherwise.
func parseKeyValueArgs(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	payload := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", arg)
		}
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			payload[key] = n
		} else {
			payload[key] = value
		}
	}
	return json.Marshal(payload)
}

func doRequest(method, path string, body []byte) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, serverURL()+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, out, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(out))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
