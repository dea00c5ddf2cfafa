// Package pdfops implements the PDF operation menu: page-tree manipulation
// through pdfcpu, with compression, repair and password handling delegated
// to Ghostscript and qpdf.
package pdfops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"omniconvert/internal/tempfs"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

// minPDFSize guards against silent tool failures that leave a stub file.
const minPDFSize = 100

// ErrNoValidPages is returned when a range spec or page list selects
// nothing after clamping.
var ErrNoValidPages = errors.New("no valid pages selected")

// NamedFile pairs an output filename with its content, used for
// multi-output operations like split.
type NamedFile struct {
	Name string
	Data []byte
}

// Metadata is the document information surfaced by the metadata endpoint.
type Metadata struct {
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Subject      string    `json:"subject"`
	Creator      string    `json:"creator"`
	Producer     string    `json:"producer"`
	CreationDate string    `json:"creationDate"`
	ModDate      string    `json:"modDate"`
	PageCount    int       `json:"pageCount"`
	Pages        []PageDim `json:"pages"`
}

// PageDim is one page's media box size in points.
type PageDim struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MetadataUpdate is a partial update; nil fields are left untouched.
type MetadataUpdate struct {
	Title   *string `json:"title"`
	Author  *string `json:"author"`
	Subject *string `json:"subject"`
	Creator *string `json:"creator"`
}

// Service performs PDF operations inside per-call temp workspaces.
type Service struct {
	temp     *tempfs.Manager
	tools    tools.Toolset
	timeouts u.TimeoutsConfig
}

// NewService wires the workspace manager and resolved tool paths.
func NewService(temp *tempfs.Manager, ts tools.Toolset, timeouts u.TimeoutsConfig) *Service {
	return &Service{temp: temp, tools: ts, timeouts: timeouts}
}

func (s *Service) defaultTimeout() time.Duration {
	return time.Duration(s.timeouts.DefaultSecs) * time.Second
}

// stage materializes the input buffer in a fresh workspace. The returned
// cleanup must run on every exit path.
func (s *Service) stage(input []byte, name string) (dir, inPath string, cleanup func(), err error) {
	dir, err = s.temp.NewDir()
	if err != nil {
		return "", "", nil, fmt.Errorf("create temp workspace: %w", err)
	}
	cleanup = func() { s.temp.Cleanup(dir) }
	inPath, err = s.temp.WriteFile(dir, name, input)
	if err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("write input file: %w", err)
	}
	return dir, inPath, cleanup, nil
}

// readOutput loads a produced file and rejects implausibly small results.
func (s *Service) readOutput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("output file missing: %w", err)
	}
	if len(data) < minPDFSize {
		return nil, fmt.Errorf("output is unusually small (%d bytes), conversion likely failed", len(data))
	}
	return data, nil
}

// PageCount returns the number of pages without mutating the document.
func (s *Service) PageCount(input []byte) (int, error) {
	_, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return 0, err
	}
	defer cleanup()
	n, err := api.PageCountFile(inPath)
	if err != nil {
		return 0, fmt.Errorf("read PDF: %w", err)
	}
	return n, nil
}

// Merge concatenates the sources in request order, preserving per-source
// page order.
func (s *Service) Merge(inputs [][]byte) ([]byte, error) {
	if len(inputs) < 2 {
		return nil, errors.New("merge requires at least 2 PDF files")
	}
	dir, err := s.temp.NewDir()
	if err != nil {
		return nil, fmt.Errorf("create temp workspace: %w", err)
	}
	defer s.temp.Cleanup(dir)

	inPaths := make([]string, 0, len(inputs))
	for i, in := range inputs {
		p, err := s.temp.WriteFile(dir, fmt.Sprintf("in-%03d.pdf", i), in)
		if err != nil {
			return nil, fmt.Errorf("write input %d: %w", i, err)
		}
		inPaths = append(inPaths, p)
	}

	outPath := filepath.Join(dir, "merged.pdf")
	if err := api.MergeCreateFile(inPaths, outPath, false, nil); err != nil {
		return nil, fmt.Errorf("merge PDFs: %w", err)
	}
	return s.readOutput(outPath)
}

// Split cuts the document into one output per range group. Callers zip
// multi-file results; a single group comes back as one plain PDF.
func (s *Service) Split(input []byte, rangeSpec string) ([]NamedFile, error) {
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	total, err := api.PageCountFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	groups := ParseRanges(rangeSpec, total)
	if len(groups) == 0 {
		return nil, ErrNoValidPages
	}

	out := make([]NamedFile, 0, len(groups))
	for i, group := range groups {
		outPath := filepath.Join(dir, fmt.Sprintf("split-%d.pdf", i+1))
		if err := api.TrimFile(inPath, outPath, selectors(group), nil); err != nil {
			return nil, fmt.Errorf("split group %d: %w", i+1, err)
		}
		data, err := s.readOutput(outPath)
		if err != nil {
			return nil, fmt.Errorf("split group %d: %w", i+1, err)
		}
		out = append(out, NamedFile{Name: fmt.Sprintf("split-%d.pdf", i+1), Data: data})
	}
	return out, nil
}

// Rotate adds angle to each targeted page's existing rotation. pdfcpu's
// rotation is relative, so repeated application accumulates.
func (s *Service) Rotate(input []byte, angle int, pages []int) ([]byte, error) {
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var sel []string
	if len(pages) > 0 {
		total, err := api.PageCountFile(inPath)
		if err != nil {
			return nil, fmt.Errorf("read PDF: %w", err)
		}
		clamped := ClampPages(pages, total)
		if len(clamped) == 0 {
			return input, nil
		}
		sel = selectors(clamped)
	}

	outPath := filepath.Join(dir, "rotated.pdf")
	if err := api.RotateFile(inPath, outPath, angle, sel, nil); err != nil {
		return nil, fmt.Errorf("rotate: %w", err)
	}
	return s.readOutput(outPath)
}

// ExtractPages keeps only the requested pages, in request order.
// Out-of-range page numbers are silently dropped.
func (s *Service) ExtractPages(input []byte, pages []int) ([]byte, error) {
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	total, err := api.PageCountFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	clamped := ClampPages(pages, total)
	if len(clamped) == 0 {
		return nil, ErrNoValidPages
	}

	outPath := filepath.Join(dir, "extracted.pdf")
	if err := api.CollectFile(inPath, outPath, selectors(clamped), nil); err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	return s.readOutput(outPath)
}

// RemovePages drops the requested pages by extracting the complement set,
// so both operations share one out-of-range policy. Removing only
// out-of-range pages returns the document unchanged.
func (s *Service) RemovePages(input []byte, pages []int) ([]byte, error) {
	total, err := s.PageCount(input)
	if err != nil {
		return nil, err
	}
	clamped := ClampPages(pages, total)
	if len(clamped) == 0 {
		return input, nil
	}
	keep := Complement(clamped, total)
	if len(keep) == 0 {
		return nil, errors.New("cannot remove every page of the document")
	}
	return s.ExtractPages(input, keep)
}

// PageNumberOptions positions the stamped number.
type PageNumberOptions struct {
	Position string // left, center, right
	FontSize int
	Start    int // number assigned to the first page
}

// AddPageNumbers stamps "N / total" at the bottom of every page.
func (s *Service) AddPageNumbers(input []byte, opts PageNumberOptions) ([]byte, error) {
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	total, err := api.PageCountFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}

	if opts.FontSize <= 0 {
		opts.FontSize = 12
	}
	if opts.Start <= 0 {
		opts.Start = 1
	}
	pos := map[string]string{"left": "bl", "center": "bc", "right": "br"}[opts.Position]
	if pos == "" {
		pos = "bc"
	}

	wms := make(map[int]*model.Watermark, total)
	for p := 1; p <= total; p++ {
		desc := fmt.Sprintf(
			"fontname:Helvetica, points:%d, position:%s, offset:0 15, fillcolor:#404040, rotation:0, opacity:1, scalefactor:1 abs",
			opts.FontSize, pos,
		)
		text := fmt.Sprintf("%d / %d", opts.Start+p-1, total)
		wm, err := api.TextWatermark(text, desc, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("build page number stamp: %w", err)
		}
		wms[p] = wm
	}

	outPath := filepath.Join(dir, "numbered.pdf")
	if err := api.AddWatermarksMapFile(inPath, outPath, wms, nil); err != nil {
		return nil, fmt.Errorf("add page numbers: %w", err)
	}
	return s.readOutput(outPath)
}

// WatermarkOptions controls the text stamp applied to every page.
type WatermarkOptions struct {
	Text     string
	FontSize int
	Opacity  float64
	Rotation float64
	Color    string // hex like #ff0000
}

// Watermark stamps the same text on every page with independent rotation
// and opacity.
func (s *Service) Watermark(input []byte, opts WatermarkOptions) ([]byte, error) {
	if opts.Text == "" {
		return nil, errors.New("watermark text is required")
	}
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if opts.FontSize <= 0 {
		opts.FontSize = 48
	}
	if opts.Opacity <= 0 || opts.Opacity > 1 {
		opts.Opacity = 0.3
	}
	if opts.Color == "" {
		opts.Color = "#808080"
	}

	desc := fmt.Sprintf(
		"fontname:Helvetica, points:%d, position:c, fillcolor:%s, rotation:%g, opacity:%g, scalefactor:1 abs",
		opts.FontSize, opts.Color, opts.Rotation, opts.Opacity,
	)
	wm, err := api.TextWatermark(opts.Text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("build watermark: %w", err)
	}

	outPath := filepath.Join(dir, "watermarked.pdf")
	if err := api.AddWatermarksFile(inPath, outPath, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("add watermark: %w", err)
	}
	return s.readOutput(outPath)
}

// infoDict returns the document information dictionary, or nil when the
// document has none.
func infoDict(ctx *model.Context) (types.Dict, error) {
	if ctx.Info == nil {
		return nil, nil
	}
	return ctx.DereferenceDict(*ctx.Info)
}

func infoString(d types.Dict, key string) string {
	if d == nil {
		return ""
	}
	if v := d.StringEntry(key); v != nil {
		return *v
	}
	return ""
}

// ReadMetadata returns document information plus per-page dimensions.
func (s *Service) ReadMetadata(input []byte) (*Metadata, error) {
	_, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ctx, err := api.ReadContextFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	info, err := infoDict(ctx)
	if err != nil {
		return nil, fmt.Errorf("read info dict: %w", err)
	}

	md := &Metadata{
		Title:        infoString(info, "Title"),
		Author:       infoString(info, "Author"),
		Subject:      infoString(info, "Subject"),
		Creator:      infoString(info, "Creator"),
		Producer:     infoString(info, "Producer"),
		CreationDate: infoString(info, "CreationDate"),
		ModDate:      infoString(info, "ModDate"),
		PageCount:    ctx.PageCount,
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("read page dimensions: %w", err)
	}
	for _, d := range dims {
		md.Pages = append(md.Pages, PageDim{Width: d.Width, Height: d.Height})
	}
	return md, nil
}

// UpdateMetadata applies a partial update: only provided fields change.
func (s *Service) UpdateMetadata(input []byte, upd MetadataUpdate) ([]byte, error) {
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ctx, err := api.ReadContextFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	info, err := infoDict(ctx)
	if err != nil {
		return nil, fmt.Errorf("read info dict: %w", err)
	}
	if info == nil {
		info = types.Dict{}
		ir, err := ctx.IndRefForNewObject(info)
		if err != nil {
			return nil, fmt.Errorf("create info dict: %w", err)
		}
		ctx.Info = ir
	}

	set := func(key string, v *string) {
		if v != nil {
			info[key] = types.StringLiteral(*v)
		}
	}
	set("Title", upd.Title)
	set("Author", upd.Author)
	set("Subject", upd.Subject)
	set("Creator", upd.Creator)

	outPath := filepath.Join(dir, "updated.pdf")
	if err := api.WriteContextFile(ctx, outPath); err != nil {
		return nil, fmt.Errorf("write PDF: %w", err)
	}
	return s.readOutput(outPath)
}

// EditTextOptions places caller-provided text at a fixed offset on the
// selected pages (all pages when Pages is empty).
type EditTextOptions struct {
	Text     string
	X, Y     float64
	FontSize int
	Color    string
	Pages    []int
}

// EditText overlays text onto the page content.
func (s *Service) EditText(input []byte, opts EditTextOptions) ([]byte, error) {
	if opts.Text == "" {
		return nil, errors.New("text is required")
	}
	dir, inPath, cleanup, err := s.stage(input, "in.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if opts.FontSize <= 0 {
		opts.FontSize = 12
	}
	if opts.Color == "" {
		opts.Color = "#000000"
	}
	var sel []string
	if len(opts.Pages) > 0 {
		total, err := api.PageCountFile(inPath)
		if err != nil {
			return nil, fmt.Errorf("read PDF: %w", err)
		}
		clamped := ClampPages(opts.Pages, total)
		if len(clamped) == 0 {
			return nil, ErrNoValidPages
		}
		sel = selectors(clamped)
	}

	desc := fmt.Sprintf(
		"fontname:Helvetica, points:%d, position:bl, offset:%g %g, fillcolor:%s, rotation:0, opacity:1, scalefactor:1 abs",
		opts.FontSize, opts.X, opts.Y, opts.Color,
	)
	wm, err := api.TextWatermark(opts.Text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("build text overlay: %w", err)
	}

	outPath := filepath.Join(dir, "edited.pdf")
	if err := api.AddWatermarksFile(inPath, outPath, sel, wm, nil); err != nil {
		return nil, fmt.Errorf("overlay text: %w", err)
	}
	return s.readOutput(outPath)
}
