package handlers

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"omniconvert/internal/format"
	"omniconvert/internal/pdfops"
	u "omniconvert/internal/utils"
)

// targetFormat reads the requested output format, accepting both field
// names clients use.
func targetFormat(c *fiber.Ctx) string {
	if v := c.FormValue("format"); v != "" {
		return v
	}
	return c.FormValue("targetFormat")
}

// HandleConvert is the universal conversion endpoint: one file in, the
// dispatcher picks the rule, one file (or a zip for multi-page output) back.
func (s *Services) HandleConvert(c *fiber.Ctx) error {
	up, err := formFile(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	target := format.Normalize(targetFormat(c))
	if target == "" {
		return badRequest(c, "target format is required (field \"format\")")
	}
	opts := formOptions(c, "format", "targetFormat")

	outputs, err := s.Convert.Dispatch(c.Context(), up.Data, up.Name, target, opts)
	if err != nil {
		return fail(c, err)
	}

	if len(outputs) == 1 {
		return sendFile(c, outputs[0].Name, outputs[0].Data)
	}
	files := make([]pdfops.NamedFile, 0, len(outputs))
	for _, o := range outputs {
		files = append(files, pdfops.NamedFile{Name: o.Name, Data: o.Data})
	}
	archive, err := zipFiles(files)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+".zip", archive)
}

// HandleCompressImage shrinks a single image without changing its meaning.
func (s *Services) HandleCompressImage(c *fiber.Ctx) error {
	up, err := formFile(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !format.IsImage(filepath.Ext(up.Name)) {
		return badRequest(c, "compress-image requires an image upload")
	}
	opts := formOptions(c)

	out, err := s.Convert.CompressImage(c.Context(), up.Data, up.Name, opts)
	if err != nil {
		return fail(c, err)
	}

	outExt := format.Normalize(opts.Str("format", format.Normalize(filepath.Ext(up.Name))))
	return sendFile(c, baseName(up.Name)+"."+outExt, out)
}

// HandleBatch converts several files to the same target format and returns
// a zip. Individual failures do not abort the batch; they are reported in
// an errors.txt entry alongside the successful conversions.
func (s *Services) HandleBatch(c *fiber.Ctx) error {
	ups, err := formFiles(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	target := format.Normalize(targetFormat(c))
	if target == "" {
		return badRequest(c, "target format is required (field \"format\")")
	}
	opts := formOptions(c, "format", "targetFormat")

	var files []pdfops.NamedFile
	var failures []string
	for _, up := range ups {
		outputs, err := s.Convert.Dispatch(c.Context(), up.Data, up.Name, target, opts)
		if err != nil {
			u.Warn("Batch item failed", "file", up.Name, "target", target, "error", err.Error())
			failures = append(failures, fmt.Sprintf("%s: %s", up.Name, err.Error()))
			continue
		}
		for _, o := range outputs {
			files = append(files, pdfops.NamedFile{Name: o.Name, Data: o.Data})
		}
	}

	if len(files) == 0 {
		return fail(c, fmt.Errorf("every file in the batch failed: %s", strings.Join(failures, "; ")))
	}
	if len(failures) > 0 {
		files = append(files, pdfops.NamedFile{
			Name: "errors.txt",
			Data: []byte(strings.Join(failures, "\n") + "\n"),
		})
	}

	archive, err := zipFiles(files)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, "converted.zip", archive)
}

// HandleFormats reports the supported format domains.
func (s *Services) HandleFormats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"supported": format.Domains()})
}

func baseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
