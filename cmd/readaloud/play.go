package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/edgewire/readaloud/internal/logging"
)

// startPlayer launches the configured external player and returns its stdin
// as the audio sink. The close function waits for the player to exit.
func startPlayer(ctx context.Context, player string) (io.Writer, func() error, error) {
	fields := strings.Fields(player)
	if len(fields) == 0 {
		return nil, nil, errors.New("no player configured")
	}

	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, nil, err
	}

	cmd := exec.CommandContext(ctx, path, fields[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, nil, err
	}
	logging.Debugf("player started: %s", path)

	closeFn := func() error {
		_ = stdin.Close()
		return cmd.Wait()
	}
	return stdin, closeFn, nil
}
