// Package diagnostics gathers an environment report for the diagnose
// command: external tools, database health, CPU capabilities, and cache
// footprints.
package diagnostics

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/franz/music-minder/internal/audio/simd"
	"github.com/franz/music-minder/internal/catalog"
	"github.com/franz/music-minder/internal/coverart"
	"github.com/franz/music-minder/internal/fingerprint"
	"github.com/franz/music-minder/internal/organize"
)

// Report is one full diagnostics pass.
type Report struct {
	FpcalcAvailable bool
	FpcalcPath      string
	FpcalcVersion   string
	FpcalcHint      string

	SQLiteVersion string
	CatalogOK     bool
	CatalogError  string

	SIMDLevel     string
	LogicalCores  int
	PhysicalCores int

	CoverCacheBytes int64
	CoverCacheHuman string

	HasUndoJournal bool
}

// Run collects everything. A nil store skips the catalog checks; the
// report still carries the rest.
func Run(ctx context.Context, store *catalog.Store, coverCacheDir, dataDir string) Report {
	r := Report{
		SQLiteVersion: catalog.SQLiteVersion(),
		SIMDLevel:     simd.DetectLevel().String(),
		LogicalCores:  runtime.NumCPU(),
		PhysicalCores: physicalCores(runtime.NumCPU()),
	}

	r.FpcalcAvailable = fingerprint.Available()
	if r.FpcalcAvailable {
		r.FpcalcPath = fingerprint.Path()
		if v, err := fingerprint.Version(ctx); err == nil {
			r.FpcalcVersion = v
		}
	} else {
		r.FpcalcHint = fingerprint.InstallHint()
	}

	if store != nil {
		if err := store.CheckIntegrity(); err != nil {
			r.CatalogError = err.Error()
		} else {
			r.CatalogOK = true
		}
	}

	cache := coverart.NewCache(coverCacheDir)
	r.CoverCacheBytes = cache.SizeBytes()
	r.CoverCacheHuman = humanize.Bytes(uint64(r.CoverCacheBytes))

	r.HasUndoJournal = organize.HasUndo(dataDir)
	return r
}

// physicalCores estimates real cores from the logical count. SMT doubles
// the logical count on most consumer hardware, so halve it, never below
// one.
func physicalCores(logical int) int {
	cores := logical / 2
	if cores < 1 {
		cores = 1
	}
	return cores
}

// Format renders the report for the terminal.
func (r Report) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "fpcalc:          %s\n", r.fpcalcLine())
	fmt.Fprintf(&b, "SQLite:          %s\n", orUnknown(r.SQLiteVersion))
	fmt.Fprintf(&b, "Catalog:         %s\n", r.catalogLine())
	fmt.Fprintf(&b, "SIMD:            %s\n", r.SIMDLevel)
	fmt.Fprintf(&b, "CPU cores:       %d logical, ~%d physical\n", r.LogicalCores, r.PhysicalCores)
	fmt.Fprintf(&b, "Cover cache:     %s\n", r.CoverCacheHuman)
	fmt.Fprintf(&b, "Undo journal:    %s\n", yesNo(r.HasUndoJournal))

	return b.String()
}

func (r Report) fpcalcLine() string {
	if !r.FpcalcAvailable {
		return "missing (" + r.FpcalcHint + ")"
	}
	line := r.FpcalcPath
	if r.FpcalcVersion != "" {
		line += " (" + r.FpcalcVersion + ")"
	}
	return line
}

func (r Report) catalogLine() string {
	switch {
	case r.CatalogOK:
		return "ok"
	case r.CatalogError != "":
		return "FAILED: " + r.CatalogError
	default:
		return "not checked"
	}
}

// Healthy reports whether anything needs attention.
func (r Report) Healthy() bool {
	return r.FpcalcAvailable && (r.CatalogOK || r.CatalogError == "")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func yesNo(v bool) string {
	if v {
		return "present"
	}
	return "none"
}
