package raster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

// TestHelperProcess stands in for the conversion tool. Its arguments after
// "--" are: command, in, out, --dpi, n.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]
	in, out := args[1], args[2]

	// Record the temp dir so the test can check cleanup.
	if f := os.Getenv("HELPER_RECORD"); f != "" {
		_ = os.WriteFile(f, []byte(filepath.Dir(in)), 0o644)
	}

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		data, _ := os.ReadFile(in)
		_ = os.WriteFile(out, append([]byte("GRAY:"), data...), 0o644)
	case "exit":
		fmt.Fprint(os.Stderr, "[ERROR] Ghostscript not found!")
		os.Exit(1)
	case "empty":
		_ = os.WriteFile(out, nil, 0o644)
	case "missing":
	case "hang":
		fmt.Fprint(os.Stderr, "[INFO] rendering page 1 of 40")
		time.Sleep(10 * time.Second)
	}
}

func withHelper(t *testing.T, mode string) string {
	t.Helper()
	record := filepath.Join(t.TempDir(), "record")
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode, "HELPER_RECORD="+record)
		return cmd
	}
	t.Cleanup(func() { execCommand = orig })
	return record
}

func assertCleanedUp(t *testing.T, record string) {
	t.Helper()
	dir, err := os.ReadFile(record)
	require.NoError(t, err)
	_, err = os.Stat(string(dir))
	assert.True(t, os.IsNotExist(err), "temp dir %s left behind", dir)
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		timeout    time.Duration
		wantErr    string
		wantStderr string
		wantOutput string
	}{
		{name: "success", mode: "ok", wantOutput: "GRAY:%PDF-test"},
		{name: "non-zero exit surfaces stderr", mode: "exit", wantErr: "Ghostscript not found"},
		{name: "empty output", mode: "empty", wantErr: "empty file"},
		{name: "missing output", mode: "missing", wantErr: "no output"},
		{name: "timeout surfaces stderr", mode: "hang", timeout: 2 * time.Second, wantErr: "timed out", wantStderr: "rendering page 1 of 40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := withHelper(t, tt.mode)
			c, err := NewConverter(Config{Command: "python3", Timeout: tt.timeout}, nil)
			require.NoError(t, err)

			out, err := c.Convert(context.Background(), []byte("%PDF-test"))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, models.ErrConversion)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Contains(t, err.Error(), tt.wantStderr)
				assert.Nil(t, out)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOutput, string(out))
			}
			if tt.mode != "hang" {
				assertCleanedUp(t, record)
			}
		})
	}
}

func TestNewConverterValidatesDPI(t *testing.T) {
	_, err := NewConverter(Config{Command: "python3", DPI: 50}, nil)
	assert.Error(t, err)
	_, err = NewConverter(Config{Command: "python3", DPI: 3000}, nil)
	assert.Error(t, err)
	_, err = NewConverter(Config{}, nil)
	assert.Error(t, err)

	c, err := NewConverter(Config{Command: "python3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDPI, c.config.DPI)
}

func TestProbe(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })

	c, err := NewConverter(Config{Command: "python3", Script: filepath.Join(t.TempDir(), "convert.py")}, nil)
	require.NoError(t, err)

	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	assert.Error(t, c.Probe(context.Background()))

	lookPath = func(f string) (string, error) { return "/usr/bin/" + f, nil }
	assert.Error(t, c.Probe(context.Background()), "script missing")

	require.NoError(t, os.WriteFile(c.config.Script, []byte("#!/usr/bin/env python3"), 0o644))
	assert.NoError(t, c.Probe(context.Background()))
}
