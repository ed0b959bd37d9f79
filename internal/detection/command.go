package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"deepshield/internal/services"
	"deepshield/internal/store"
)

// Command runs a local classifier as a subprocess.
type Command struct {
	binary string
	args   []string
	mode   Mode
}

// NewCommand parses a whitespace separated command line.
func NewCommand(commandLine string, mode Mode) (*Command, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "detection", "new command", "empty command", nil)
	}
	return &Command{binary: fields[0], args: fields[1:], mode: mode}, nil
}

// Detect runs `<command> <args...> <paths...>` and decodes stdout.
func (c *Command) Detect(ctx context.Context, in Input) ([]store.FrameAnalysis, error) {
	var inputs []string
	if c.mode == ModeFrames {
		paths, err := framePaths(in)
		if err != nil {
			return nil, err
		}
		inputs = paths
	} else {
		if strings.TrimSpace(in.VideoPath) == "" {
			return nil, services.Wrap(services.ErrValidation, "detection", "prepare input", "no video to analyze", nil)
		}
		inputs = []string{in.VideoPath}
	}

	args := append(append([]string{}, c.args...), inputs...)
	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			var payload response
			if json.Unmarshal(stdout.Bytes(), &payload) == nil && payload.Error != "" {
				detail = payload.Error
			}
		}
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return nil, services.Wrap(services.ErrExternalTool, "detection", c.binary, detail, err)
	}
	return decodeResponse(stdout.Bytes(), in, c.mode)
}
