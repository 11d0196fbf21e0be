package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/reelgrab/reelgrab/internal/config"
	"github.com/reelgrab/reelgrab/internal/domain"
)

// RunStatus is the observed state of the managed server process.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusStopped RunStatus = "stopped"
	StatusStale   RunStatus = "stale"
)

const pollInterval = 200 * time.Millisecond

// Report describes the server process at the time of a status check.
type Report struct {
	Status      RunStatus
	PID         int
	Port        int
	StartedAt   time.Time
	LogModified time.Time
}

// Supervisor starts, stops and inspects the server process. The state
// file is the single source of truth for what was started.
type Supervisor struct {
	cfg    config.SupervisorConfig
	port   int
	state  *StateFile
	logger *slog.Logger
}

// New creates a supervisor for the server listening on port.
func New(cfg config.SupervisorConfig, port int, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		port:   port,
		state:  NewStateFile(cfg.PIDFile),
		logger: logger,
	}
}

// Start launches the server detached, with output appended to the log
// file, and waits until the port answers. Returns ErrAlreadyRunning if
// the recorded process is still alive, ErrPortInUse if something else
// holds the port.
func (s *Supervisor) Start(ctx context.Context) (*State, error) {
	state, err := s.state.Load()
	if err != nil {
		return nil, err
	}
	if state != nil && processAlive(state.PID) {
		return state, domain.ErrAlreadyRunning
	}

	if portListening(s.port) {
		return nil, domain.ErrPortInUse
	}

	logFile, err := s.openLogFile()
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	cmd := s.serverCommand(logFile)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start server: %w", err)
	}

	newState := &State{
		PID:       cmd.Process.Pid,
		Port:      s.port,
		StartedAt: time.Now().UTC(),
	}
	if err := s.state.Save(newState); err != nil {
		cmd.Process.Kill()
		return nil, err
	}
	// The child is detached; release it so it is not waited on here.
	cmd.Process.Release()

	if err := s.waitForPort(ctx, newState.PID); err != nil {
		s.state.Clear()
		return nil, err
	}

	s.logger.Info("server started", "pid", newState.PID, "port", newState.Port)
	return newState, nil
}

// Stop terminates the recorded server process. SIGTERM first, SIGKILL
// after StopTimeout. With no state file it reports ErrNotRunning,
// which callers treat as an informational no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	state, err := s.state.Load()
	if err != nil {
		return err
	}
	if state == nil {
		return domain.ErrNotRunning
	}
	if !processAlive(state.PID) {
		return s.state.Clear()
	}

	if err := unix.Kill(state.PID, unix.SIGTERM); err != nil && err != unix.ESRCH {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(s.cfg.StopTimeout)
	for time.Now().Before(deadline) {
		if !processAlive(state.PID) {
			return s.state.Clear()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	s.logger.Warn("server did not exit in time, escalating", "pid", state.PID)
	unix.Kill(state.PID, unix.SIGKILL)
	return s.state.Clear()
}

// Restart stops the server if running, then starts it.
func (s *Supervisor) Restart(ctx context.Context) (*State, error) {
	if err := s.Stop(ctx); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return nil, err
	}
	return s.Start(ctx)
}

// Status reports whether the recorded server is actually serving. A
// state file whose process is dead or not listening is stale and is
// removed as a side effect.
func (s *Supervisor) Status() (*Report, error) {
	state, err := s.state.Load()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &Report{Status: StatusStopped}, nil
	}

	if processAlive(state.PID) && portListening(state.Port) {
		report := &Report{
			Status:    StatusRunning,
			PID:       state.PID,
			Port:      state.Port,
			StartedAt: state.StartedAt,
		}
		if info, err := os.Stat(s.cfg.LogFile); err == nil {
			report.LogModified = info.ModTime()
		}
		return report, nil
	}

	if err := s.state.Clear(); err != nil {
		return nil, err
	}
	return &Report{Status: StatusStale, PID: state.PID, Port: state.Port}, nil
}

// Kill force-kills every server process it can find, ignoring the
// state file, and clears it. Best-effort: it never fails.
func (s *Supervisor) Kill() int {
	killed := 0
	binName := filepath.Base(s.cfg.ServerBin)

	for _, pid := range findProcessesByName(binName) {
		if pid == os.Getpid() {
			continue
		}
		if err := unix.Kill(pid, unix.SIGKILL); err == nil {
			s.logger.Info("killed server process", "pid", pid)
			killed++
		}
	}

	for _, pid := range findPortOwners(s.port) {
		if pid == os.Getpid() {
			continue
		}
		if err := unix.Kill(pid, unix.SIGKILL); err == nil {
			s.logger.Info("killed port owner", "pid", pid, "port", s.port)
			killed++
		}
	}

	s.state.Clear()
	return killed
}

// serverCommand builds the detached server process. The config file
// the supervisor loaded is forwarded so the child reads the same one.
func (s *Supervisor) serverCommand(logFile *os.File) *exec.Cmd {
	var args []string
	if s.cfg.ConfigPath != "" {
		args = append(args, "-config", s.cfg.ConfigPath)
	}

	cmd := exec.Command(s.cfg.ServerBin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), fmt.Sprintf("SERVER_PORT=%d", s.port))
	// Detach into its own session so it survives the supervisor exiting.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}

func (s *Supervisor) openLogFile() (*os.File, error) {
	if dir := filepath.Dir(s.cfg.LogFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// waitForPort polls until the server answers on its port, the process
// dies, or StartTimeout expires.
func (s *Supervisor) waitForPort(ctx context.Context, pid int) error {
	deadline := time.Now().Add(s.cfg.StartTimeout)
	for time.Now().Before(deadline) {
		if portListening(s.port) {
			return nil
		}
		if !processAlive(pid) {
			return fmt.Errorf("server exited during startup, see %s", s.cfg.LogFile)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return fmt.Errorf("server did not answer on port %d within %s", s.port, s.cfg.StartTimeout)
}

// processAlive probes a PID with signal 0. EPERM still means alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// portListening dials the local port with a short timeout.
func portListening(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// findProcessesByName scans /proc for processes whose command line
// contains name.
func findProcessesByName(name string) []int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			continue
		}
		cmdline := strings.ReplaceAll(string(data), "\x00", " ")
		if strings.Contains(cmdline, name) {
			pids = append(pids, pid)
		}
	}
	return pids
}

// findPortOwners asks lsof which processes hold the port. Missing lsof
// yields nothing.
func findPortOwners(port int) []int {
	out, err := exec.Command("lsof", "-ti", fmt.Sprintf(":%d", port)).Output()
	if err != nil {
		return nil
	}

	var pids []int
	for _, line := range strings.Fields(string(out)) {
		if pid, err := strconv.Atoi(line); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}
