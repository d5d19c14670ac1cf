package iface

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// Result is the outcome of one external command.
//
// Timeouts are a distinguished failure (ExitCode -1, "command timed out"),
// never a hang: every command runs under a bounded context.
type Result struct {
	OK       bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"returncode"`
}

func runCommand(ctx context.Context, timeout time.Duration, argv ...string) Result {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		return Result{OK: false, Stderr: "command timed out", ExitCode: -1}
	}

	res := Result{
		OK:     err == nil,
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}
	return res
}
