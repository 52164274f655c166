package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hotelText = `Hotel reservation
Property Name: Grand Hotel
Check-in Date: 01/15/2025
Check-out Date: 01/17/2025`

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	// build --mode writes EXTRACT_MODE; register it for restore.
	t.Setenv("EXTRACT_MODE", os.Getenv("EXTRACT_MODE"))
	t.Cleanup(func() {
		configPath, buildMode, buildOutput, buildQuiet = "", "", "", false
	})
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestBuild_MockModePrintsMarkdown(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EXTRACT_MODE", "")
	t.Setenv("LOG_LEVEL", "error")

	stdout, stderr, err := execute(t, "build", "--mode", "mock", writeFile(t, "hotel.txt", hotelText))

	require.NoError(t, err)
	assert.Contains(t, stdout, "# Your Trip Itinerary")
	assert.Contains(t, stdout, "Grand Hotel")
	assert.Contains(t, stderr, "hotel.txt")
	assert.Contains(t, stderr, "BUILD_MARKDOWN")
	assert.Contains(t, stderr, "warning: No hotel booked for 2025-01-17")
}

func TestBuild_WritesOutputFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	out := filepath.Join(t.TempDir(), "trip.md")

	stdout, stderr, err := execute(t, "build", "--mode", "mock", "-q", "-o", out, writeFile(t, "hotel.txt", hotelText))

	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Grand Hotel")
}

func TestBuild_PolicyRejectsEmptyFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	_, _, err := execute(t, "build", "--mode", "mock", "-q", writeFile(t, "empty.txt", ""))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty.txt is empty")
}

func TestBuild_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	_, _, err := execute(t, "build", "--mode", "mock", filepath.Join(t.TempDir(), "nope.pdf"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.pdf")
}

func TestConfig_MasksSecrets(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EXTRACT_MODE", "live")
	t.Setenv("AI_API_KEY", "sk-ai-secret")
	t.Setenv("OCR_API_KEY", "sk-ocr-secret")
	t.Setenv("DATABASE_URL", "postgres://app:hunter2@db:5432/itinerary")

	stdout, _, err := execute(t, "config")

	require.NoError(t, err)
	assert.NotContains(t, stdout, "sk-ai-secret")
	assert.NotContains(t, stdout, "hunter2")
	assert.Contains(t, stdout, "********")
	assert.Contains(t, stdout, "extract_mode")
}
