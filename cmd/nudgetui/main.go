package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/omninudge/nudge/internal/account"
	"github.com/omninudge/nudge/internal/local"
	"github.com/omninudge/nudge/internal/tui"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	flag.Parse()

	accountName := account.Resolve(*accountFlag)
	if err := account.ValidateName(accountName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := account.SocketPath(accountName)
	c := local.NewClient(socketPath)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(c) {
		fmt.Fprintf(os.Stderr, "daemon not running for account %q, starting...\n", accountName)
		if err := startDaemon(accountName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(c, 10*time.Second) {
			fmt.Fprintln(os.Stderr, "daemon did not become ready")
			os.Exit(1)
		}
	}

	app := tui.NewApp(c, accountName)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon checks if a daemon is answering on the socket.
func probeDaemon(c *local.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.Ping(ctx)
}

func startDaemon(accountName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	nudged := filepath.Join(filepath.Dir(executable), "nudged")

	if _, err := os.Stat(nudged); err != nil {
		nudged = "nudged"
	}

	cmd := exec.Command(nudged, "--account", accountName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls with a real status call, not just a socket connect.
func waitForDaemon(c *local.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(c) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
