// Package util provides small helpers shared across the simulator.
package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// SanitizeName replaces every character that is not a letter or digit with '_'.
func SanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}

// FileStem returns the base name of path without directories or extension.
// Only the part before the first dot is kept.
func FileStem(path string) string {
	base := filepath.Base(filepath.ToSlash(path))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

// TraceFileName builds the trace database path for a run:
// <net>_SimTime<runTime>_<demand>_Seed<seed>_<timestamp>.db inside outputDir.
func TraceFileName(outputDir, netFile, demandFile string, runTime, seed int64, now time.Time) string {
	name := fmt.Sprintf("%s_SimTime%d_%s_Seed%d_%s",
		FileStem(netFile),
		runTime,
		FileStem(demandFile),
		seed,
		now.Format("2006-01-02 15:04:05"),
	)
	name = SanitizeName(name) + ".db"
	if outputDir == "" {
		return name
	}
	return filepath.Join(outputDir, name)
}
