package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"omniconvert/internal/format"
	"omniconvert/internal/runner"
	"omniconvert/internal/tools"
)

// ConvertImage re-encodes an image to targetFormat via ImageMagick,
// honoring quality/width/height options.
func (s *Service) ConvertImage(ctx context.Context, input []byte, filename, targetFormat string, opts Options) ([]byte, error) {
	magick, err := s.tools.Path(tools.Magick)
	if err != nil {
		return nil, err
	}

	dir, inPath, cleanup, err := s.stage(input, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "out."+format.Normalize(targetFormat))
	args := []string{inPath, "-auto-orient"}
	if q := opts.Int("quality", 0); q > 0 && q <= 100 {
		args = append(args, "-quality", strconv.Itoa(q))
	}
	w, h := opts.Int("width", 0), opts.Int("height", 0)
	if w > 0 || h > 0 {
		args = append(args, "-resize", geometry(w, h))
	}
	args = append(args, outPath)

	res, err := runner.Run(ctx, tools.Magick, magick, args, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Magick, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return readOutput(outPath)
}

// CompressImage shrinks an image, optionally bounding its dimensions and
// re-encoding into a different container. Aggressive mode additionally
// strips metadata and applies chroma subsampling.
func (s *Service) CompressImage(ctx context.Context, input []byte, filename string, opts Options) ([]byte, error) {
	magick, err := s.tools.Path(tools.Magick)
	if err != nil {
		return nil, err
	}

	dir, inPath, cleanup, err := s.stage(input, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outExt := format.Normalize(opts.Str("format", format.Normalize(filepath.Ext(filename))))
	if outExt == "" {
		outExt = "jpg"
	}
	outPath := filepath.Join(dir, "compressed."+outExt)

	quality := opts.Int("quality", 75)
	if quality < 1 || quality > 100 {
		quality = 75
	}
	args := []string{inPath, "-auto-orient", "-quality", strconv.Itoa(quality)}
	maxW, maxH := opts.Int("maxWidth", 0), opts.Int("maxHeight", 0)
	if maxW > 0 || maxH > 0 {
		// The trailing > shrinks only, never upscales.
		args = append(args, "-resize", geometry(maxW, maxH)+">")
	}
	if opts.Bool("aggressive") {
		args = append(args, "-strip", "-sampling-factor", "4:2:0", "-interlace", "Plane")
	}
	args = append(args, outPath)

	res, err := runner.Run(ctx, tools.Magick, magick, args, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Magick, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	out, err := readOutput(outPath)
	if err != nil {
		return nil, err
	}
	// Compression that grows the file is pointless; keep the original
	// unless the container changed.
	if len(out) >= len(input) && outExt == format.Normalize(filepath.Ext(filename)) {
		return input, nil
	}
	return out, nil
}

// gsDevices maps target image formats to Ghostscript output devices.
var gsDevices = map[string]string{
	"png":  "png16m",
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"tif":  "tiff24nc",
	"tiff": "tiff24nc",
	"bmp":  "bmp16m",
}

// ConvertPDFToImages rasterizes every page of a PDF via Ghostscript and
// returns one image per page.
func (s *Service) ConvertPDFToImages(ctx context.Context, input []byte, targetFormat string, opts Options) ([]NamedOutput, error) {
	gs, err := s.tools.Path(tools.Ghostscript)
	if err != nil {
		return nil, err
	}
	ext := format.Normalize(targetFormat)
	device, ok := gsDevices[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported image format for PDF rasterization: %s", targetFormat)
	}

	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	dpi := opts.Int("dpi", 150)
	if dpi < 36 || dpi > 600 {
		dpi = 150
	}
	pattern := filepath.Join(dir, "page-%03d."+ext)
	args := []string{
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=" + device,
		"-r" + strconv.Itoa(dpi),
		"-sOutputFile=" + pattern,
		inPath,
	}
	res, err := runner.Run(ctx, tools.Ghostscript, gs, args, s.defaultTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Ghostscript, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "page-*."+ext))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("rasterization produced no pages")
	}
	sort.Strings(matches)

	out := make([]NamedOutput, 0, len(matches))
	for _, m := range matches {
		data, err := readOutput(m)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedOutput{Name: filepath.Base(m), Data: data})
	}
	return out, nil
}

// ConvertImagesToPDF embeds one or more images into a fresh PDF. Each
// image is first re-encoded to lossless PNG so embedding does not compound
// lossy-encoding artifacts.
func (s *Service) ConvertImagesToPDF(ctx context.Context, inputs []NamedOutput) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one image is required")
	}
	magick, err := s.tools.Path(tools.Magick)
	if err != nil {
		return nil, err
	}

	dir, err := s.temp.NewDir()
	if err != nil {
		return nil, fmt.Errorf("create temp workspace: %w", err)
	}
	defer s.temp.Cleanup(dir)

	pngPaths := make([]string, 0, len(inputs))
	for i, img := range inputs {
		inPath, err := s.temp.WriteFile(dir, fmt.Sprintf("img-%03d%s", i, filepath.Ext(img.Name)), img.Data)
		if err != nil {
			return nil, fmt.Errorf("write image %d: %w", i, err)
		}
		pngPath := filepath.Join(dir, fmt.Sprintf("img-%03d.png", i))
		res, err := runner.Run(ctx, tools.Magick, magick, []string{inPath, "-auto-orient", pngPath}, s.defaultTimeout())
		if err != nil {
			return nil, err
		}
		if res.ExitCode != 0 {
			return nil, &runner.ToolError{Tool: tools.Magick, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		pngPaths = append(pngPaths, pngPath)
	}

	outPath := filepath.Join(dir, "out.pdf")
	if err := api.ImportImagesFile(pngPaths, outPath, nil, nil); err != nil {
		return nil, fmt.Errorf("embed images into PDF: %w", err)
	}
	return readOutput(outPath)
}

// NamedOutput pairs a filename with content for multi-file results.
type NamedOutput struct {
	Name string
	Data []byte
}

func geometry(w, h int) string {
	switch {
	case w > 0 && h > 0:
		return fmt.Sprintf("%dx%d", w, h)
	case w > 0:
		return strconv.Itoa(w)
	default:
		return fmt.Sprintf("x%d", h)
	}
}
