// Package fingerprint generates Chromaprint acoustic fingerprints by
// shelling out to the fpcalc tool.
package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrToolMissing is returned when fpcalc cannot be found anywhere.
var ErrToolMissing = errors.New("fpcalc not found")

// Fingerprint is the output of one fpcalc run.
type Fingerprint struct {
	// Duration of the audio in seconds, as measured by fpcalc
	Duration float64
	// Data is the compressed base64 chromaprint string
	Data string
}

// fpcalcOutput matches fpcalc -json output
type fpcalcOutput struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

var (
	locateOnce sync.Once
	fpcalcPath string
)

// wellKnownPaths returns platform-specific locations checked after PATH.
// Package managers install fpcalc in places that are often not on the PATH
// of a desktop session.
func wellKnownPaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/opt/homebrew/bin/fpcalc",
			"/usr/local/bin/fpcalc",
			"/opt/local/bin/fpcalc",
		}
	case "windows":
		var paths []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LOCALAPPDATA"} {
			if base := os.Getenv(env); base != "" {
				paths = append(paths, filepath.Join(base, "Chromaprint", "fpcalc.exe"))
			}
		}
		return paths
	default:
		return []string{
			"/usr/bin/fpcalc",
			"/usr/local/bin/fpcalc",
			"/snap/bin/fpcalc",
			"/var/lib/flatpak/exports/bin/fpcalc",
		}
	}
}

// locate finds fpcalc on PATH or in well-known install locations. The
// result is cached for the process lifetime.
func locate() string {
	locateOnce.Do(func() {
		if p, err := exec.LookPath("fpcalc"); err == nil {
			fpcalcPath = p
			return
		}
		for _, p := range wellKnownPaths() {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				fpcalcPath = p
				return
			}
		}
	})
	return fpcalcPath
}

// Available reports whether fpcalc can be found.
func Available() bool {
	return locate() != ""
}

// Path returns the resolved fpcalc path, empty when missing.
func Path() string {
	return locate()
}

// InstallHint returns platform-appropriate install instructions for the
// chromaprint tools.
func InstallHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "install chromaprint with: brew install chromaprint"
	case "windows":
		return "download fpcalc from https://acoustid.org/chromaprint and place it next to the binary or on PATH"
	default:
		return "install chromaprint with your package manager, e.g. apt install libchromaprint-tools"
	}
}

// Version returns the fpcalc version string.
func Version(ctx context.Context) (string, error) {
	tool := locate()
	if tool == "" {
		return "", fmt.Errorf("%w; %s", ErrToolMissing, InstallHint())
	}
	out, err := exec.CommandContext(ctx, tool, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("fpcalc -version failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Generate fingerprints a single audio file. The fingerprint stays in
// fpcalc's compressed text form, which is what AcoustID expects.
func Generate(ctx context.Context, path string) (*Fingerprint, error) {
	tool := locate()
	if tool == "" {
		return nil, fmt.Errorf("%w; %s", ErrToolMissing, InstallHint())
	}

	// Some formats legitimately take a while to decode, but a stuck fpcalc
	// must not wedge a whole batch.
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	out, err := exec.CommandContext(ctx, tool, "-json", path).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("fpcalc failed on %s: %s", path, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("fpcalc failed on %s: %w", path, err)
	}

	var parsed fpcalcOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse fpcalc output for %s: %w", path, err)
	}
	if parsed.Fingerprint == "" {
		return nil, fmt.Errorf("fpcalc produced an empty fingerprint for %s", path)
	}

	return &Fingerprint{Duration: parsed.Duration, Data: parsed.Fingerprint}, nil
}
