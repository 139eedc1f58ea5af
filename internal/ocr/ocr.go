// Package ocr extracts text from image clips with an external recogniser.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single recognition.
const DefaultTimeout = 30 * time.Second

// ErrUnavailable means no recogniser is installed.
var ErrUnavailable = errors.New("ocr: recogniser not available")

// Recognizer turns image bytes into text.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (string, error)
}

// Tesseract runs the tesseract CLI, feeding the image on stdin and reading
// text from stdout.
type Tesseract struct {
	// Binary is the executable name or path; empty means "tesseract".
	Binary string
	// Languages are passed with -l, joined by '+'. Empty uses tesseract's default.
	Languages []string
	Timeout   time.Duration
}

// Available reports whether the binary can be found.
func (t Tesseract) Available() bool {
	_, err := exec.LookPath(t.binary())
	return err == nil
}

func (t Tesseract) binary() string {
	if t.Binary != "" {
		return t.Binary
	}
	return "tesseract"
}

// Recognize returns the recognised text with blank lines and surrounding
// space removed. An image without text returns "".
func (t Tesseract) Recognize(ctx context.Context, img []byte) (string, error) {
	path, err := exec.LookPath(t.binary())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"stdin", "stdout"}
	if len(t.Languages) > 0 {
		args = append(args, "-l", strings.Join(t.Languages, "+"))
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(img)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ocr: %w", ctx.Err())
		}
		return "", fmt.Errorf("ocr: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return clean(stdout.String()), nil
}

func clean(s string) string {
	var lines []string
	for l := range strings.Lines(s) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
