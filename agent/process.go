package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// waitDelay bounds how long output copying may outlive a killed command, for
// example when a grandchild keeps the pipe open.
const waitDelay = 5 * time.Second

// startCommand runs argv with input on stdin and env as environment (nil
// inherits the handler's) and returns a reader over its combined stdout and
// stderr. The output is produced while the command runs.
// A non-zero exit appends "exit code N" to the output. The command's process
// group is killed when timeout elapses.
func startCommand(argv []string, input []byte, env []string, timeout time.Duration, logger zerolog.Logger) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = env
	// Set process group so the timeout reaches children too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		cancel()
		pw.Close()
		return nil, err
	}
	logger.Debug().Strs("command", argv).Int("pid", cmd.Process.Pid).Msg("command started")

	go func() {
		defer cancel()
		err := cmd.Wait()
		if err != nil {
			code := -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
			if ctx.Err() == context.DeadlineExceeded {
				logger.Warn().Dur("timeout", timeout).Msg("command timed out")
			}
			logger.Debug().Int("code", code).Msg("command exited")
			fmt.Fprintf(pw, "exit code %d\n", code)
		}
		pw.Close()
	}()

	return pr, nil
}
