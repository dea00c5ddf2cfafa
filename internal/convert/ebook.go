package convert

import (
	"context"
	"path/filepath"

	"omniconvert/internal/format"
	"omniconvert/internal/runner"
	"omniconvert/internal/tools"
)

// ConvertEbook converts between e-book formats (or to PDF) via Calibre's
// ebook-convert, which infers both directions from the file extensions.
func (s *Service) ConvertEbook(ctx context.Context, input []byte, filename, targetFormat string) ([]byte, error) {
	ebookConvert, err := s.tools.Path(tools.EbookConvert)
	if err != nil {
		return nil, err
	}

	dir, inPath, cleanup, err := s.stage(input, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "out."+format.Normalize(targetFormat))
	res, err := runner.Run(ctx, tools.EbookConvert, ebookConvert, []string{inPath, outPath}, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.EbookConvert, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return readOutput(outPath)
}
