// Package ocr wraps tesseract for image text recognition and builds
// searchable PDFs through a tiered fallback chain: ocrmypdf when present,
// otherwise rasterize-and-recognize with the text overlaid invisibly onto
// the original document.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"omniconvert/internal/runner"
	"omniconvert/internal/tempfs"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

// langPattern accepts tesseract language codes, including combined ones
// like "deu+eng".
var langPattern = regexp.MustCompile(`^[a-z_]{3,}(\+[a-z_]{3,})*$`)

// Word is one recognized token with its bounding box and confidence.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// DetailedResult carries word-level recognition output.
type DetailedResult struct {
	Text           string  `json:"text"`
	Words          []Word  `json:"words"`
	MeanConfidence float64 `json:"meanConfidence"`
}

// TextPDFRenderer synthesizes a plain-text PDF; used as the last-resort
// degraded output when the original PDF cannot be reopened for overlay.
type TextPDFRenderer interface {
	TextToPDF(ctx context.Context, text string) ([]byte, error)
}

// Service runs OCR jobs against the resolved external tools.
type Service struct {
	temp     *tempfs.Manager
	tools    tools.Toolset
	timeouts u.TimeoutsConfig
	textPDF  TextPDFRenderer
}

// NewService wires the OCR service. textPDF may be nil, in which case the
// degraded text-only output path is unavailable.
func NewService(temp *tempfs.Manager, ts tools.Toolset, timeouts u.TimeoutsConfig, textPDF TextPDFRenderer) *Service {
	return &Service{temp: temp, tools: ts, timeouts: timeouts, textPDF: textPDF}
}

func (s *Service) stageTimeout() time.Duration {
	return time.Duration(s.timeouts.OCRSecs) * time.Second
}

// NormalizeLang validates and defaults the tesseract language code.
func NormalizeLang(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "eng", nil
	}
	if !langPattern.MatchString(lang) {
		return "", fmt.Errorf("invalid OCR language code: %q", lang)
	}
	return lang, nil
}

// RecognizeImage extracts plain text from an image.
func (s *Service) RecognizeImage(ctx context.Context, input []byte, filename, lang string) (string, error) {
	tess, err := s.tools.Path(tools.Tesseract)
	if err != nil {
		return "", err
	}
	lang, err = NormalizeLang(lang)
	if err != nil {
		return "", err
	}

	dir, err := s.temp.NewDir()
	if err != nil {
		return "", fmt.Errorf("create temp workspace: %w", err)
	}
	defer s.temp.Cleanup(dir)

	inPath, err := s.temp.WriteFile(dir, filename, input)
	if err != nil {
		return "", fmt.Errorf("write input file: %w", err)
	}

	res, err := runner.Run(ctx, tools.Tesseract, tess, []string{inPath, "stdout", "-l", lang}, s.stageTimeout())
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &runner.ToolError{Tool: tools.Tesseract, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// RecognizeImageDetailed extracts text plus per-word bounding boxes and
// confidences from tesseract's TSV output.
func (s *Service) RecognizeImageDetailed(ctx context.Context, input []byte, filename, lang string) (*DetailedResult, error) {
	tess, err := s.tools.Path(tools.Tesseract)
	if err != nil {
		return nil, err
	}
	lang, err = NormalizeLang(lang)
	if err != nil {
		return nil, err
	}

	dir, err := s.temp.NewDir()
	if err != nil {
		return nil, fmt.Errorf("create temp workspace: %w", err)
	}
	defer s.temp.Cleanup(dir)

	inPath, err := s.temp.WriteFile(dir, filename, input)
	if err != nil {
		return nil, fmt.Errorf("write input file: %w", err)
	}

	res, err := runner.Run(ctx, tools.Tesseract, tess, []string{inPath, "stdout", "-l", lang, "tsv"}, s.stageTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Tesseract, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return parseTSV(res.Stdout), nil
}

// parseTSV reads tesseract's 12-column TSV; level 5 rows are words, and a
// negative confidence marks structural rows without text.
func parseTSV(tsv string) *DetailedResult {
	out := &DetailedResult{}
	var confSum float64
	var lines []string

	for i, line := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		level, _ := strconv.Atoi(cols[0])
		if level != 5 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])

		out.Words = append(out.Words, Word{
			Text: text, Confidence: conf,
			Left: left, Top: top, Width: width, Height: height,
		})
		confSum += conf
		lines = append(lines, text)
	}

	out.Text = strings.Join(lines, " ")
	if len(out.Words) > 0 {
		out.MeanConfidence = confSum / float64(len(out.Words))
	}
	return out
}

// SearchablePDF makes a PDF full-text-searchable. Tiers, first available
// wins: (a) ocrmypdf; (b) rasterize with Ghostscript, recognize each page
// with tesseract's native PDF output and merge; (c) rasterize, recognize
// plain text and overlay it invisibly onto the original document. When the
// original cannot be reopened for overlay, a text-only PDF is synthesized
// instead of failing outright.
func (s *Service) SearchablePDF(ctx context.Context, input []byte, lang string) ([]byte, error) {
	lang, err := NormalizeLang(lang)
	if err != nil {
		return nil, err
	}

	if s.tools.Has(tools.OCRmyPDF) {
		out, err := s.viaOCRmyPDF(ctx, input, lang)
		if err == nil {
			return out, nil
		}
		u.Warn("ocrmypdf failed, falling back to rasterize pipeline", "error", err.Error())
	}

	if s.tools.Has(tools.Ghostscript) && s.tools.Has(tools.Tesseract) {
		out, err := s.viaPagePDFs(ctx, input, lang)
		if err == nil {
			return out, nil
		}
		u.Warn("per-page PDF recognition failed, falling back to text overlay", "error", err.Error())
		return s.viaTextOverlay(ctx, input, lang)
	}

	return nil, &tools.NotFoundError{Tool: tools.OCRmyPDF}
}

func (s *Service) viaOCRmyPDF(ctx context.Context, input []byte, lang string) ([]byte, error) {
	bin, err := s.tools.Path(tools.OCRmyPDF)
	if err != nil {
		return nil, err
	}

	dir, err := s.temp.NewDir()
	if err != nil {
		return nil, fmt.Errorf("create temp workspace: %w", err)
	}
	defer s.temp.Cleanup(dir)

	inPath, err := s.temp.WriteFile(dir, "in.pdf", input)
	if err != nil {
		return nil, err
	}
	outPath := filepath.Join(dir, "out.pdf")

	args := []string{"--skip-text", "-l", lang, inPath, outPath}
	res, err := runner.Run(ctx, tools.OCRmyPDF, bin, args, s.stageTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.OCRmyPDF, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return readFile(outPath)
}

// rasterize renders each page to a 300dpi PNG and returns the sorted paths.
func (s *Service) rasterize(ctx context.Context, dir, inPath string) ([]string, error) {
	gs, err := s.tools.Path(tools.Ghostscript)
	if err != nil {
		return nil, err
	}
	pattern := filepath.Join(dir, "page-%03d.png")
	args := []string{
		"-q", "-dNOPAUSE", "-dBATCH", "-dSAFER",
		"-sDEVICE=png16m", "-r300",
		"-sOutputFile=" + pattern,
		inPath,
	}
	res, err := runner.Run(ctx, tools.Ghostscript, gs, args, s.stageTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.Ghostscript, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	pages, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil || len(pages) == 0 {
		return nil, fmt.Errorf("rasterization produced no pages")
	}
	sort.Strings(pages)
	return pages, nil
}

// viaPagePDFs has tesseract emit one searchable PDF per page image, then
// merges them in page order.
func (s *Service) viaPagePDFs(ctx context.Context, input []byte, lang string) ([]byte, error) {
	tess, err := s.tools.Path(tools.Tesseract)
	if err != nil {
		return nil, err
	}

	dir, err := s.temp.NewDir()
	if err != nil {
		return nil, fmt.Errorf("create temp workspace: %w", err)
	}
	defer s.temp.Cleanup(dir)

	inPath, err := s.temp.WriteFile(dir, "in.pdf", input)
	if err != nil {
		return nil, err
	}
	pages, err := s.rasterize(ctx, dir, inPath)
	if err != nil {
		return nil, err
	}

	pagePDFs := make([]string, 0, len(pages))
	for _, page := range pages {
		outBase := strings.TrimSuffix(page, ".png") + "-ocr"
		res, err := runner.Run(ctx, tools.Tesseract, tess, []string{page, outBase, "-l", lang, "pdf"}, s.stageTimeout())
		if err != nil {
			return nil, err
		}
		if res.ExitCode != 0 {
			return nil, &runner.ToolError{Tool: tools.Tesseract, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		pagePDFs = append(pagePDFs, outBase+".pdf")
	}

	outPath := filepath.Join(dir, "merged.pdf")
	if len(pagePDFs) == 1 {
		return readFile(pagePDFs[0])
	}
	if err := api.MergeCreateFile(pagePDFs, outPath, false, nil); err != nil {
		return nil, fmt.Errorf("merge recognized pages: %w", err)
	}
	return readFile(outPath)
}

// viaTextOverlay recognizes plain text per page and stamps it onto the
// original document as white 1pt text, keeping the visual appearance while
// making the content searchable.
func (s *Service) viaTextOverlay(ctx context.Context, input []byte, lang string) ([]byte, error) {
	tess, err := s.tools.Path(tools.Tesseract)
	if err != nil {
		return nil, err
	}

	dir, err := s.temp.NewDir()
	if err != nil {
		return nil, fmt.Errorf("create temp workspace: %w", err)
	}
	defer s.temp.Cleanup(dir)

	inPath, err := s.temp.WriteFile(dir, "in.pdf", input)
	if err != nil {
		return nil, err
	}
	pages, err := s.rasterize(ctx, dir, inPath)
	if err != nil {
		return nil, err
	}

	pageTexts := make([]string, 0, len(pages))
	for _, page := range pages {
		res, err := runner.Run(ctx, tools.Tesseract, tess, []string{page, "stdout", "-l", lang}, s.stageTimeout())
		if err != nil {
			return nil, err
		}
		if res.ExitCode != 0 {
			return nil, &runner.ToolError{Tool: tools.Tesseract, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		pageTexts = append(pageTexts, strings.TrimSpace(res.Stdout))
	}

	out, err := s.overlay(inPath, dir, pageTexts)
	if err == nil {
		return out, nil
	}
	u.Warn("text overlay failed, synthesizing text-only PDF", "error", err.Error())

	if s.textPDF == nil {
		return nil, fmt.Errorf("overlay failed and no text-only fallback is wired: %w", err)
	}
	return s.textPDF.TextToPDF(ctx, strings.Join(pageTexts, "\n\n"))
}

func (s *Service) overlay(inPath, dir string, pageTexts []string) ([]byte, error) {
	wms := make(map[int]*model.Watermark, len(pageTexts))
	for i, text := range pageTexts {
		if text == "" {
			continue
		}
		wm, err := api.TextWatermark(text,
			"fontname:Helvetica, points:1, position:bl, fillcolor:#ffffff, opacity:0.01, scalefactor:1 abs",
			true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("build text overlay: %w", err)
		}
		wms[i+1] = wm
	}
	if len(wms) == 0 {
		return readFile(inPath)
	}

	outPath := filepath.Join(dir, "searchable.pdf")
	if err := api.AddWatermarksMapFile(inPath, outPath, wms, nil); err != nil {
		return nil, fmt.Errorf("apply text overlay: %w", err)
	}
	return readFile(outPath)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("expected output file was not produced: %w", err)
	}
	if len(data) < 100 {
		return nil, fmt.Errorf("output is unusually small (%d bytes)", len(data))
	}
	return data, nil
}
