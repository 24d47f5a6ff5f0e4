package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdfrebrand/internal/models"
)

type fakeExtractor struct {
	name      string
	available bool
	images    []models.ExtractedImage
	err       error
	calls     int
}

func (f *fakeExtractor) Name() string { return f.name }

func (f *fakeExtractor) Probe(context.Context) Availability {
	return Availability{Available: f.available, Message: f.name}
}

func (f *fakeExtractor) Extract(context.Context, models.RawDocument) ([]models.ExtractedImage, error) {
	f.calls++
	return f.images, f.err
}

func TestChainImageExtractor(t *testing.T) {
	primaryImages := []models.ExtractedImage{{Name: "p", PageNumber: 1, Encoding: models.EncodingPNG}}
	fallbackImages := []models.ExtractedImage{{Name: "f", PageNumber: 2, Encoding: models.EncodingJPEG}}

	tests := []struct {
		name          string
		primary       *fakeExtractor
		wantName      string
		wantFallbacks int
	}{
		{
			name:     "primary available",
			primary:  &fakeExtractor{name: "sub", available: true, images: primaryImages},
			wantName: "p",
		},
		{
			name:          "primary unavailable",
			primary:       &fakeExtractor{name: "sub", images: primaryImages},
			wantName:      "f",
			wantFallbacks: 1,
		},
		{
			name:          "primary fails",
			primary:       &fakeExtractor{name: "sub", available: true, err: errors.New("helper crashed")},
			wantName:      "f",
			wantFallbacks: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &fakeExtractor{name: "inproc", available: true, images: fallbackImages}
			chain := NewChainImageExtractor(tt.primary, fallback, nil)

			got, err := chain.Extract(context.Background(), models.RawDocument{Filename: "x.pdf"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantName, got[0].Name)
			assert.Equal(t, tt.wantFallbacks, fallback.calls)
		})
	}
}

func TestChainImageExtractorProbe(t *testing.T) {
	chain := NewChainImageExtractor(&fakeExtractor{name: "sub"}, &fakeExtractor{name: "inproc", available: true}, nil)
	avail := chain.Probe(context.Background())
	assert.True(t, avail.Available)
	assert.Contains(t, avail.Message, "sub unavailable")
}

func TestSelectImageExtractor(t *testing.T) {
	sub := &fakeExtractor{name: "sub"}
	in := &fakeExtractor{name: "inproc"}

	got, err := SelectImageExtractor("", sub, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "sub+inproc", got.Name())

	got, err = SelectImageExtractor("InProcess", sub, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "inproc", got.Name())

	got, err = SelectImageExtractor("subprocess", sub, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "sub", got.Name())

	_, err = SelectImageExtractor("magic", sub, in, nil)
	assert.Error(t, err)
}

func TestPdfcpuImageExtractor(t *testing.T) {
	data := buildPDF(t, []fixturePage{
		{lines: []string{"cover"}},
		{images: []fixtureImage{{name: "photo", w: 120, h: 80}, {name: "dot", w: 10, h: 10}}},
		{images: []fixtureImage{{name: "chart", w: 64, h: 64}}},
	}, false)

	images, err := NewPdfcpuImageExtractor(nil).Extract(context.Background(), models.RawDocument{Filename: "img.pdf", Data: data})
	require.NoError(t, err)
	require.Len(t, images, 2)

	assert.Equal(t, 2, images[0].PageNumber)
	assert.Equal(t, 3, images[1].PageNumber)
	for _, img := range images {
		assert.Equal(t, models.EncodingJPEG, img.Encoding)
		assert.Equal(t, []byte{0xFF, 0xD8}, img.Data[:2])
		cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cfg.Width, MinImageDimension, img.Name)
		assert.GreaterOrEqual(t, cfg.Height, MinImageDimension, img.Name)
	}
}

func TestPdfcpuImageExtractorMinimumDimension(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		keep bool
	}{
		{name: "at the minimum", w: 50, h: 50, keep: true},
		{name: "narrow strip", w: 49, h: 300},
		{name: "thin rule", w: 400, h: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildPDF(t, []fixturePage{{images: []fixtureImage{{name: "img", w: tt.w, h: tt.h}}}}, false)

			images, err := NewPdfcpuImageExtractor(nil).Extract(context.Background(), models.RawDocument{Data: data})
			require.NoError(t, err)
			if tt.keep {
				assert.Len(t, images, 1)
			} else {
				assert.Empty(t, images)
			}
		})
	}
}

// fakeExecCommand re-runs the test binary as the helper process.
func fakeExecCommand(mode string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		report := helperReport{
			Success: true,
			Images: []helperImage{
				{Filename: "page1_img1.jpeg", Base64: base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0}), Page: 1, MIMEType: "image/jpeg"},
				{Filename: "page3_img1.png", Base64: base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n")), Page: 3, MIMEType: "image/png"},
				{Filename: "broken", Base64: "!!!", Page: 2, MIMEType: "image/png"},
			},
		}
		_ = json.NewEncoder(os.Stdout).Encode(report)
	case "fail":
		_ = json.NewEncoder(os.Stdout).Encode(helperReport{Error: "PyMuPDF not installed"})
		os.Exit(1)
	case "crash":
		fmt.Fprint(os.Stderr, "Traceback: boom")
		os.Exit(2)
	case "hang":
		time.Sleep(10 * time.Second)
	}
}

func withExec(t *testing.T, mode string) {
	t.Helper()
	origExec, origLook := execCommand, lookPath
	execCommand = fakeExecCommand(mode)
	lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	t.Cleanup(func() { execCommand, lookPath = origExec, origLook })
}

func TestSubprocessImageExtractor(t *testing.T) {
	doc := models.RawDocument{Filename: "x.pdf", Data: []byte("%PDF-1.4")}

	t.Run("parses report and skips bad images", func(t *testing.T) {
		withExec(t, "ok")
		ext := NewSubprocessImageExtractor(SubprocessConfig{Command: "python3"}, nil)

		images, err := ext.Extract(context.Background(), doc)
		require.NoError(t, err)
		require.Len(t, images, 2)
		assert.Equal(t, models.EncodingJPEG, images[0].Encoding)
		assert.Equal(t, 1, images[0].PageNumber)
		assert.Equal(t, models.EncodingPNG, images[1].Encoding)
		assert.Equal(t, 3, images[1].PageNumber)
	})

	t.Run("reported failure", func(t *testing.T) {
		withExec(t, "fail")
		_, err := NewSubprocessImageExtractor(SubprocessConfig{Command: "python3"}, nil).Extract(context.Background(), doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PyMuPDF not installed")
	})

	t.Run("crash surfaces stderr", func(t *testing.T) {
		withExec(t, "crash")
		_, err := NewSubprocessImageExtractor(SubprocessConfig{Command: "python3"}, nil).Extract(context.Background(), doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Traceback: boom")
	})

	t.Run("timeout", func(t *testing.T) {
		withExec(t, "hang")
		ext := NewSubprocessImageExtractor(SubprocessConfig{Command: "python3", Timeout: 200 * time.Millisecond}, nil)
		_, err := ext.Extract(context.Background(), doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})
}

func TestSubprocessProbe(t *testing.T) {
	origLook := lookPath
	t.Cleanup(func() { lookPath = origLook })

	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	avail := NewSubprocessImageExtractor(SubprocessConfig{Command: "python3"}, nil).Probe(context.Background())
	assert.False(t, avail.Available)

	lookPath = func(file string) (string, error) { return "/usr/bin/" + file, nil }
	avail = NewSubprocessImageExtractor(SubprocessConfig{Command: "python3", Script: "/nonexistent/extract.py"}, nil).Probe(context.Background())
	assert.False(t, avail.Available)
	assert.Contains(t, avail.Message, "not found")

	avail = NewSubprocessImageExtractor(SubprocessConfig{Command: "python3"}, nil).Probe(context.Background())
	assert.True(t, avail.Available)

	avail = NewSubprocessImageExtractor(SubprocessConfig{}, nil).Probe(context.Background())
	assert.False(t, avail.Available)
}
