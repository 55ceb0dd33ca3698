// Package helper resolves the files the messenger reads and writes at startup.
package helper

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfig names a config file that replaces the --conf lookup entirely
	EnvConfig = "UMBRA_CONFIG"
	// EnvRunDir is where relative PID file names are placed
	EnvRunDir = "UMBRA_RUN_DIR"

	defaultConfigDir = "/etc/umbra"
	defaultRunDir    = "/var/run/umbra"
	defaultPIDName   = "messenger.pid"
)

// GetCfgPath returns the path to the configuration file.
//
// Priority:
//  1. $UMBRA_CONFIG
//  2. filename itself when absolute
//  3. ./{filename}, then ./configs/{filename}
//  4. /etc/umbra/{filename}
func GetCfgPath(filename string) string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	if filename == "" {
		panic("filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	if p := firstExisting(filename, ".", "configs"); p != "" {
		return p
	}
	return filepath.Join(defaultConfigDir, filename)
}

// GetPIDPath returns where the PID file is written. Absolute names are kept.
// Relative names go under $UMBRA_RUN_DIR when set, else under the working
// directory if it exists, else under /var/run/umbra.
func GetPIDPath(filename string) string {
	if filename == "" {
		filename = defaultPIDName
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	if dir := os.Getenv(EnvRunDir); dir != "" {
		return filepath.Join(dir, filename)
	}
	if abs, err := filepath.Abs(filename); err == nil {
		if _, err := os.Stat(filepath.Dir(abs)); err == nil {
			return abs
		}
	}
	return filepath.Join(defaultRunDir, filename)
}

func firstExisting(filename string, dirs ...string) string {
	for _, dir := range dirs {
		abs, err := filepath.Abs(filepath.Join(dir, filename))
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	return ""
}
