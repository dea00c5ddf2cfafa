package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"omniconvert/internal/format"
	u "omniconvert/internal/utils"
)

// UnsupportedPairError is returned when no dispatch rule accepts the
// (input extension, target format) pair. Its message lists the supported
// domains so the client sees what the service can do.
type UnsupportedPairError struct {
	InputExt string
	Target   string
}

func (e *UnsupportedPairError) Error() string {
	domains := format.Domains()
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("conversion from %q to %q is not supported; supported domains: %s",
		e.InputExt, e.Target, strings.Join(names, ", "))
}

// rule pairs a format-pair predicate with the conversion it triggers.
// Rules are evaluated in declaration order, first match wins.
type rule struct {
	name  string
	match func(inputExt, target string) bool
	run   func(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error)
}

var rules = []rule{
	{
		name:  "office->pdf",
		match: func(in, t string) bool { return format.IsOffice(in) && format.IsPDF(t) },
		run:   runDocument,
	},
	{
		name:  "pdf->office",
		match: func(in, t string) bool { return format.IsPDF(in) && format.IsOffice(t) },
		run:   runDocument,
	},
	{
		name:  "pdf->image",
		match: func(in, t string) bool { return format.IsPDF(in) && format.IsImage(t) },
		run: func(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error) {
			pages, err := s.ConvertPDFToImages(ctx, input, target, opts)
			if err != nil {
				return nil, err
			}
			base := baseName(filename)
			for i := range pages {
				pages[i].Name = base + "-" + pages[i].Name
			}
			return pages, nil
		},
	},
	{
		name:  "image->pdf",
		match: func(in, t string) bool { return format.IsImage(in) && format.IsPDF(t) },
		run: func(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error) {
			out, err := s.ConvertImagesToPDF(ctx, []NamedOutput{{Name: filename, Data: input}})
			if err != nil {
				return nil, err
			}
			return single(filename, target, out), nil
		},
	},
	{
		name:  "image->image",
		match: func(in, t string) bool { return format.IsImage(in) && format.IsImage(t) },
		run: func(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error) {
			out, err := s.ConvertImage(ctx, input, filename, target, opts)
			if err != nil {
				return nil, err
			}
			return single(filename, target, out), nil
		},
	},
	{
		// gif is classified as an image, but video to gif is a media
		// extraction and belongs to ffmpeg.
		name: "media->media",
		match: func(in, t string) bool {
			return format.IsMedia(in) && (format.IsMedia(t) || format.Normalize(t) == "gif")
		},
		run: func(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error) {
			out, err := s.ConvertMedia(ctx, input, filename, target, opts)
			if err != nil {
				return nil, err
			}
			return single(filename, target, out), nil
		},
	},
	{
		name: "ebook",
		match: func(in, t string) bool {
			if format.IsEbook(in) && (format.IsEbook(t) || format.IsPDF(t)) {
				return true
			}
			return format.IsPDF(in) && format.IsEbook(t)
		},
		run: func(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error) {
			out, err := s.ConvertEbook(ctx, input, filename, target)
			if err != nil {
				return nil, err
			}
			return single(filename, target, out), nil
		},
	},
	{
		name:  "markup->pdf",
		match: func(in, t string) bool { return format.IsMarkup(in) && format.IsPDF(t) },
		run: func(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error) {
			out, err := s.ConvertMarkupToPDF(ctx, input, filename, opts)
			if err != nil {
				return nil, err
			}
			return single(filename, target, out), nil
		},
	},
	{
		// Last resort: anything asked to become a PDF goes through the
		// office converter, which accepts a surprisingly wide input range.
		name:  "fallback->pdf",
		match: func(in, t string) bool { return format.IsPDF(t) },
		run:   runDocument,
	},
}

func runDocument(ctx context.Context, s *Service, input []byte, filename, target string, opts Options) ([]NamedOutput, error) {
	out, err := s.ConvertDocument(ctx, input, filename, target)
	if err != nil {
		return nil, err
	}
	return single(filename, target, out), nil
}

// ruleFor returns the first rule matching the pair.
func ruleFor(inputExt, target string) (rule, bool) {
	in := format.Normalize(inputExt)
	t := format.Normalize(target)
	for _, r := range rules {
		if r.match(in, t) {
			return r, true
		}
	}
	return rule{}, false
}

// Dispatch routes one upload to the first matching conversion rule and
// returns the resulting file(s). Most rules produce exactly one output;
// PDF rasterization produces one image per page.
func (s *Service) Dispatch(ctx context.Context, input []byte, filename, targetFormat string, opts Options) ([]NamedOutput, error) {
	target := format.Normalize(targetFormat)
	if target == "" {
		return nil, fmt.Errorf("target format must not be empty")
	}
	inputExt := format.Normalize(filepath.Ext(filename))

	r, ok := ruleFor(inputExt, target)
	if !ok {
		return nil, &UnsupportedPairError{InputExt: inputExt, Target: target}
	}
	u.Debug("dispatching conversion", "rule", r.name, "input", inputExt, "target", target)
	return r.run(ctx, s, input, filename, target, opts)
}

func baseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func single(filename, target string, data []byte) []NamedOutput {
	return []NamedOutput{{Name: baseName(filename) + "." + format.Normalize(target), Data: data}}
}
