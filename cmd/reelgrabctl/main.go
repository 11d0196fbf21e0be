// Command reelgrabctl manages the reelgrab server process and the
// Instagram session credential file.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/reelgrab/reelgrab/internal/config"
	"github.com/reelgrab/reelgrab/internal/domain"
	"github.com/reelgrab/reelgrab/internal/supervisor"
	"github.com/reelgrab/reelgrab/pkg/secret"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const usage = `Usage: reelgrabctl [-config path] <command>

Commands:
  start            Start the server in the background
  stop             Stop the server (SIGTERM, then SIGKILL)
  restart          Stop then start the server
  status           Show whether the server is running
  kill             Force-kill every server process
  session encrypt <file>   Encrypt a session file in place
  session decrypt <file>   Decrypt a session file in place
  version          Show version and exit
`

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cmd := flag.Arg(0)
	if cmd == "version" {
		fmt.Printf("reelgrabctl %s (built %s)\n", Version, BuildTime)
		return
	}

	if cmd == "session" {
		if err := runSession(flag.Args()[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	// The spawned server must read the same config file
	cfg.Supervisor.ConfigPath = *configPath

	logger := newCLILogger()
	sup := supervisor.New(cfg.Supervisor, cfg.Server.Port, logger)
	ctx := context.Background()

	switch cmd {
	case "start":
		err = runStart(ctx, sup)
	case "stop":
		err = runStop(ctx, sup)
	case "restart":
		err = runRestart(ctx, sup)
	case "status":
		err = runStatus(sup)
	case "kill":
		killed := sup.Kill()
		fmt.Printf("Killed %d process(es)\n", killed)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newCLILogger keeps supervisor logging quiet unless something is wrong.
func newCLILogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func runStart(ctx context.Context, sup *supervisor.Supervisor) error {
	state, err := sup.Start(ctx)
	if errors.Is(err, domain.ErrAlreadyRunning) {
		fmt.Printf("Server is already running (pid %d)\n", state.PID)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Server started (pid %d, port %d)\n", state.PID, state.Port)
	return nil
}

func runStop(ctx context.Context, sup *supervisor.Supervisor) error {
	report, err := sup.Status()
	if err != nil {
		return err
	}
	if report.Status != supervisor.StatusRunning {
		fmt.Println("Server is not running")
		return nil
	}
	if err := sup.Stop(ctx); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return err
	}
	fmt.Println("Server stopped")
	return nil
}

func runRestart(ctx context.Context, sup *supervisor.Supervisor) error {
	state, err := sup.Restart(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Server restarted (pid %d, port %d)\n", state.PID, state.Port)
	return nil
}

func runStatus(sup *supervisor.Supervisor) error {
	report, err := sup.Status()
	if err != nil {
		return err
	}

	switch report.Status {
	case supervisor.StatusRunning:
		fmt.Printf("Server is running (pid %d, port %d)\n", report.PID, report.Port)
		fmt.Printf("  started: %s (up %s)\n",
			report.StartedAt.Local().Format(time.RFC1123),
			time.Since(report.StartedAt).Round(time.Second))
		if !report.LogModified.IsZero() {
			fmt.Printf("  log activity: %s\n", report.LogModified.Local().Format(time.RFC1123))
		}
	case supervisor.StatusStale:
		fmt.Printf("Server is not running (stale pid file for pid %d removed)\n", report.PID)
	default:
		fmt.Println("Server is not running")
	}
	return nil
}

func runSession(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: reelgrabctl session encrypt|decrypt <file>")
	}
	op, path := args[0], args[1]

	passphrase, err := promptPassphrase()
	if err != nil {
		return err
	}
	if passphrase == "" {
		return fmt.Errorf("empty passphrase")
	}

	switch op {
	case "encrypt":
		if secret.IsEncryptedFile(path) {
			return fmt.Errorf("%s is already encrypted", path)
		}
		if err := secret.EncryptFile(path, path, passphrase); err != nil {
			return err
		}
		fmt.Printf("Encrypted %s\n", path)
	case "decrypt":
		data, err := secret.DecryptFile(path, passphrase)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return err
		}
		fmt.Printf("Decrypted %s\n", path)
	default:
		return fmt.Errorf("unknown session command %q", op)
	}
	return nil
}

// promptPassphrase prompts for a passphrase without echoing.
func promptPassphrase() (string, error) {
	fmt.Print("Enter passphrase: ")

	if term.IsTerminal(int(syscall.Stdin)) {
		passphrase, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		fmt.Println()
		return string(passphrase), nil
	}

	// Fallback for non-terminal input
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
