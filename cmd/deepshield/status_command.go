package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deepshield/internal/api"
	"deepshield/internal/config"
	"deepshield/internal/store"
)

const statusRequestTimeout = 5 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running server's workflow and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := fetchStatus(cmd.Context(), cfg)
			if err != nil {
				if asJSON {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStatusLine("Server", statusError, "not reachable at "+cfg.Server.Bind, shouldColorize(out)))
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			printStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

// statusURL points at the status endpoint of the configured listener,
// substituting loopback for wildcard hosts.
func statusURL(bind string) (string, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "", fmt.Errorf("server.bind %q: %w", bind, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/status", nil
}

func fetchStatus(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	endpoint, err := statusURL(cfg.Server.Bind)
	if err != nil {
		return nil, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, statusRequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Server.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func printStatus(cmd *cobra.Command, status *api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader("Server", colorize))
	serverKind := statusOK
	serverMsg := fmt.Sprintf("running (pid %d) on %s", status.PID, status.Bind)
	if !status.Running {
		serverKind, serverMsg = statusError, "stopped"
	}
	fmt.Fprintln(out, renderStatusLine("Server", serverKind, serverMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))

	wf := status.Workflow
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderSectionHeader("Analysis", colorize))
	workersMsg := fmt.Sprintf("%d lanes, %d active", wf.Workers, len(wf.ActivePosts))
	fmt.Fprintln(out, renderStatusLine("Workers", kindFor(wf.Running, false), workersMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Posts", statusInfo, formatCounts(wf.StatusCounts), colorize))
	if wf.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
	}
	for _, stage := range wf.StageHealth {
		fmt.Fprintln(out, renderStatusLine(stage.Name, kindFor(stage.Ready, false), readyMessage(stage.Ready, stage.Detail), colorize))
	}

	if len(status.Dependencies) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
		for _, dep := range status.Dependencies {
			fmt.Fprintln(out, renderStatusLine(dep.Name, kindFor(dep.Available, dep.Optional), readyMessage(dep.Available, dep.Detail), colorize))
		}
	}
}

func kindFor(ok, optional bool) statusKind {
	switch {
	case ok:
		return statusOK
	case optional:
		return statusWarn
	default:
		return statusError
	}
}

func readyMessage(ok bool, detail string) string {
	if ok {
		return "ready"
	}
	if detail == "" {
		return "unavailable"
	}
	return detail
}

// formatCounts renders status counts in lifecycle order, then any unknown keys.
func formatCounts(counts map[string]int) string {
	seen := make(map[string]bool, len(counts))
	var parts []string
	for _, status := range store.AllStatuses() {
		key := string(status)
		seen[key] = true
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	var extra []string
	for key := range counts {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, " ")
}
