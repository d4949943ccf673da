package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"taskmatch/internal/api"
	"taskmatch/internal/config"
)

const (
	noAutostartEnvKey  = "TASKMATCH_NO_AUTOSTART"
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
	serverPingTimeout  = 500 * time.Millisecond
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	cleanup, err := ensureServer(cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	client := api.NewClient(cfg.APIURL)
	return fn(client)
}

// ensureServer starts a short-lived local server when none answers at
// api_url. Remote URLs and TASKMATCH_NO_AUTOSTART=1 disable the fallback.
func ensureServer(cfg *config.Config) (func(), error) {
	client := api.NewClient(cfg.APIURL)
	ctx, cancel := context.WithTimeout(context.Background(), serverPingTimeout)
	defer cancel()

	err := client.Ping(ctx)
	if err == nil {
		return nil, nil
	}
	if !canAutostart(cfg.APIURL) {
		return nil, err
	}

	cmd, err := startServerProcess(cfg)
	if err != nil {
		return nil, err
	}

	if err := waitForServer(client, serverStartTimeout); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	cleanup := func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}

	return cleanup, nil
}

func canAutostart(apiURL string) bool {
	if raw := strings.TrimSpace(os.Getenv(noAutostartEnvKey)); raw != "" && raw != "0" && !strings.EqualFold(raw, "false") {
		return false
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func startServerProcess(cfg *config.Config) (*exec.Cmd, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("no server at %s and no db path to start one", cfg.APIURL)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv", "--log-level", "warn")
	cmd.Env = append(os.Environ(),
		"TASKMATCH_DB="+cfg.DBPath,
		"TASKMATCH_API_URL="+cfg.APIURL,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// waitForServer polls /health until it answers. Only refused connections are
// retried; anything else means the port belongs to something else.
func waitForServer(client *api.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	backoff := retry.NewConstant(serverPollInterval)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		err := client.Ping(pingCtx)
		if err != nil && isConnRefused(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && ctx.Err() != nil {
		return errors.New("server did not start in time")
	}
	return err
}

func isConnRefused(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
