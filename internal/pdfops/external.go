package pdfops

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"omniconvert/internal/runner"
	"omniconvert/internal/tools"
)

// gsPresets maps the compression quality levels to Ghostscript's pdfwrite
// presets. Lower quality means smaller files.
var gsPresets = map[string]string{
	"low":    "/screen",
	"medium": "/ebook",
	"high":   "/printer",
}

// qpdf signals "succeeded with warnings" through exit code 3; treating it
// as failure would reject perfectly usable output.
const qpdfWarningExit = 3

// Compress rewrites the document through Ghostscript with a quality preset.
func (s *Service) Compress(ctx context.Context, input []byte, quality string) ([]byte, error) {
	gs, err := s.tools.Path(tools.Ghostscript)
	if err != nil {
		return nil, err
	}
	preset, ok := gsPresets[quality]
	if !ok {
		preset = gsPresets["medium"]
	}

	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "compressed.pdf")
	args := []string{
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=" + preset,
		"-sOutputFile=" + outPath,
		inPath,
	}
	res, err := runner.Run(ctx, tools.Ghostscript, gs, args, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Ghostscript, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	out, err := s.readOutput(outPath)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	// Ghostscript can inflate already-optimized documents; keep the smaller.
	if len(out) >= len(input) {
		return input, nil
	}
	return out, nil
}

// Repair rebuilds the cross-reference table and stream structure via qpdf.
func (s *Service) Repair(ctx context.Context, input []byte) ([]byte, error) {
	qpdf, err := s.tools.Path(tools.QPDF)
	if err != nil {
		return nil, err
	}

	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "repaired.pdf")
	res, err := runner.Run(ctx, tools.QPDF, qpdf, []string{inPath, outPath}, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 && res.ExitCode != qpdfWarningExit {
		return nil, &runner.ToolError{Tool: tools.QPDF, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	out, err := s.readOutput(outPath)
	if err != nil {
		return nil, fmt.Errorf("repair: %w", err)
	}
	return out, nil
}

// AddPassword encrypts with AES-256, same user and owner password. Older
// qpdf releases want the positional arguments before the --encrypt flag,
// so a failed primary ordering is retried once with the alternate one.
func (s *Service) AddPassword(ctx context.Context, input []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password is required")
	}
	qpdf, err := s.tools.Path(tools.QPDF)
	if err != nil {
		return nil, err
	}

	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "protected.pdf")
	primary := []string{"--encrypt", password, password, "256", "--", inPath, outPath}
	fallback := []string{inPath, outPath, "--encrypt", password, password, "256", "--"}
	return s.runQPDF(ctx, qpdf, primary, fallback, outPath)
}

// RemovePassword decrypts using the supplied password. Output always goes
// to a distinct file in the workspace; the input is never rewritten in
// place.
func (s *Service) RemovePassword(ctx context.Context, input []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password is required")
	}
	qpdf, err := s.tools.Path(tools.QPDF)
	if err != nil {
		return nil, err
	}

	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "unlocked.pdf")
	primary := []string{"--password=" + password, "--decrypt", inPath, outPath}
	fallback := []string{"--decrypt", "--password=" + password, inPath, outPath}
	return s.runQPDF(ctx, qpdf, primary, fallback, outPath)
}

func (s *Service) runQPDF(ctx context.Context, qpdf string, primary, fallback []string, outPath string) ([]byte, error) {
	res, err := runner.Run(ctx, tools.QPDF, qpdf, primary, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 && res.ExitCode != qpdfWarningExit {
		res, err = runner.Run(ctx, tools.QPDF, qpdf, fallback, s.defaultTimeout())
		if err != nil {
			return nil, err
		}
		if res.ExitCode != 0 && res.ExitCode != qpdfWarningExit {
			return nil, &runner.ToolError{Tool: tools.QPDF, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
	}
	return s.readOutput(outPath)
}

// Flatten merges form-field values into the page content by rewriting the
// document through Ghostscript. A PDF without an AcroForm is returned
// unchanged rather than treated as an error.
func (s *Service) Flatten(ctx context.Context, input []byte) ([]byte, error) {
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pdfCtx, err := api.ReadContextFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	if len(pdfCtx.Form) == 0 {
		return input, nil
	}

	gs, err := s.tools.Path(tools.Ghostscript)
	if err != nil {
		return nil, err
	}
	outPath := filepath.Join(dir, "flattened.pdf")
	args := []string{
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=pdfwrite",
		"-dPreserveAnnots=false",
		"-sOutputFile=" + outPath,
		inPath,
	}
	res, err := runner.Run(ctx, tools.Ghostscript, gs, args, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Ghostscript, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	out, err := s.readOutput(outPath)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	return out, nil
}
