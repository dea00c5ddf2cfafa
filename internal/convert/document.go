package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"omniconvert/internal/runner"
	"omniconvert/internal/tools"
)

var pdfMagic = []byte("%PDF-")

// ConvertDocument converts an office document (or a PDF, for the reverse
// direction) to targetFormat through LibreOffice's headless converter.
// Each job gets an isolated user-profile directory so concurrent
// conversions do not fight over the suite's single-instance lock.
func (s *Service) ConvertDocument(ctx context.Context, input []byte, filename, targetFormat string) ([]byte, error) {
	soffice, err := s.tools.Path(tools.Soffice)
	if err != nil {
		return nil, err
	}

	dir, inPath, cleanup, err := s.stage(input, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	profileDir := filepath.Join(dir, "profile")
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	args := []string{
		"-env:UserInstallation=file://" + profileDir,
		"--headless",
		"--convert-to", targetFormat,
		"--outdir", dir,
		inPath,
	}
	res, err := runner.Run(ctx, tools.Soffice, soffice, args, s.documentTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Soffice, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	base := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	outPath := filepath.Join(dir, base+"."+targetFormat)
	out, err := readOutput(outPath)
	if err != nil {
		if strings.EqualFold(filepath.Ext(filename), ".pdf") {
			// PDF to editable formats is lossy by nature (font substitution);
			// surface that alongside the failure so the user knows what to expect.
			return nil, fmt.Errorf("PDF to %s conversion failed (note: this direction is lossy, fonts may be substituted): %w", targetFormat, err)
		}
		return nil, err
	}

	if targetFormat == "pdf" && !bytes.HasPrefix(out, pdfMagic) {
		return nil, fmt.Errorf("converter produced an invalid PDF (missing %%PDF header)")
	}
	return out, nil
}

// TextToPDF renders plain text into a simple PDF, preferring LibreOffice
// and falling back to pandoc when the suite is not installed.
func (s *Service) TextToPDF(ctx context.Context, text string) ([]byte, error) {
	if s.tools.Has(tools.Soffice) {
		return s.ConvertDocument(ctx, []byte(text), "recognized.txt", "pdf")
	}
	return s.pandocToPDF(ctx, []byte(text), "recognized.txt")
}
