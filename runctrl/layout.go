package runctrl

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/lucabaldini/baldaquin/errors"
)

const (
	// dataEnvVar overrides the data root directory, per §6.
	dataEnvVar = "BALDAQUIN_DATA"

	defaultTestStandID = 101
	defaultRunID       = 0
)

// configDir is the project-root subdirectory holding test_stand.cfg,
// run.cfg and per-application config files, per §6's directory layout.
func configDir(root string) string {
	return filepath.Join(root, "config")
}

// dataDir is the project-root subdirectory holding per-run output
// folders, overridden wholesale by BALDAQUIN_DATA when set.
func dataDir(root string) string {
	if v := os.Getenv(dataEnvVar); v != "" {
		return v
	}
	return filepath.Join(root, "data")
}

// runDir is the per-run output directory: data/<tsid:04d>_<rid:06d>/.
func runDir(root string, testStandID, runID int) string {
	return filepath.Join(dataDir(root), fmt.Sprintf("%04d_%06d", testStandID, runID))
}

// dataFileName is the canonical sink's file name within a run directory:
// <tsid:04d>_<rid:05d>_data.dat.
func dataFileName(testStandID, runID int) string {
	return fmt.Sprintf("%04d_%05d_data.dat", testStandID, runID)
}

// logFileName is the run-scoped log file's name within a run directory:
// <tsid:04d>_<rid:05d>_run.log.
func logFileName(testStandID, runID int) string {
	return fmt.Sprintf("%04d_%05d_run.log", testStandID, runID)
}

// readIntConfig reads a single decimal integer from path, creating the
// file with dflt on first use, per §3's "created on first use"/"created
// with 0" run-identity rule.
func readIntConfig(path string, dflt int) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := writeIntConfig(path, dflt); werr != nil {
			return 0, werr
		}
		return dflt, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("%s: not a decimal integer", path))
	}
	return n, nil
}

// writeIntConfig persists n to path via a temp-file-plus-rename so a
// crash mid-write never leaves test_stand.cfg/run.cfg truncated,
// generalizing grailbio-base's state.File.Marshal discipline from a
// gob-encoded snapshot to a single plain decimal integer.
func writeIntConfig(path string, n int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, strings.NewReader(strconv.Itoa(n)+"\n"))
}

func testStandConfigPath(root string) string { return filepath.Join(configDir(root), "test_stand.cfg") }
func runConfigPath(root string) string       { return filepath.Join(configDir(root), "run.cfg") }

// appConfigPath is the per-application configuration file's path, per
// §6's config/apps/<app-name>.cfg layout.
func appConfigPath(root, appName string) string {
	return filepath.Join(configDir(root), "apps", appName+".cfg")
}
