// Package convert implements the conversion services wrapping the external
// tool families, and the universal dispatcher that routes a
// (source extension, target format) pair to exactly one of them.
package convert

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"omniconvert/internal/tempfs"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

// minOutputSize rejects implausibly small outputs that signal a silent
// tool failure rather than a real result.
const minOutputSize = 10

// Options carries per-format conversion parameters from the request
// (quality, bitrate, resolution, language, ...).
type Options map[string]string

// Int returns the named option as int, or def when absent or malformed.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float returns the named option as float64, or def.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Str returns the named option, or def when absent.
func (o Options) Str(key, def string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool returns the named option as bool, false when absent.
func (o Options) Bool(key string) bool {
	v, ok := o[key]
	if !ok {
		return false
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// Service bundles the shared dependencies of all conversion services.
type Service struct {
	temp     *tempfs.Manager
	tools    tools.Toolset
	timeouts u.TimeoutsConfig
	chrome   u.ChromeConfig
}

// NewService wires the workspace manager, resolved tool paths and timeouts.
func NewService(temp *tempfs.Manager, ts tools.Toolset, timeouts u.TimeoutsConfig, chrome u.ChromeConfig) *Service {
	return &Service{temp: temp, tools: ts, timeouts: timeouts, chrome: chrome}
}

func (s *Service) documentTimeout() time.Duration {
	return time.Duration(s.timeouts.DocumentSecs) * time.Second
}

func (s *Service) videoTimeout() time.Duration {
	return time.Duration(s.timeouts.VideoSecs) * time.Second
}

func (s *Service) defaultTimeout() time.Duration {
	return time.Duration(s.timeouts.DefaultSecs) * time.Second
}

// stage materializes the upload in a fresh workspace under its original
// name; several tools infer behavior from the input extension.
func (s *Service) stage(input []byte, filename string) (dir, inPath string, cleanup func(), err error) {
	dir, err = s.temp.NewDir()
	if err != nil {
		return "", "", nil, fmt.Errorf("create temp workspace: %w", err)
	}
	cleanup = func() { s.temp.Cleanup(dir) }
	inPath, err = s.temp.WriteFile(dir, filename, input)
	if err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("write input file: %w", err)
	}
	return dir, inPath, cleanup, nil
}

// readOutput loads a tool's output file and applies the minimum-size
// sanity check.
func readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("expected output file was not produced: %w", err)
	}
	if len(data) < minOutputSize {
		return nil, fmt.Errorf("output is unusually small (%d bytes), conversion likely failed", len(data))
	}
	return data, nil
}
