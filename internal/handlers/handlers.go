// Package handlers implements the /api route layer: multipart parsing,
// service invocation and file/JSON responses.
package handlers

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"omniconvert/internal/convert"
	"omniconvert/internal/format"
	"omniconvert/internal/ocr"
	"omniconvert/internal/pdfops"
	"omniconvert/internal/runner"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

// Services bundles everything the route layer calls into.
type Services struct {
	Convert *convert.Service
	PDF     *pdfops.Service
	OCR     *ocr.Service
	Tools   tools.Toolset
}

// upload is one parsed multipart file.
type upload struct {
	Name string
	Data []byte
}

func readFileHeader(fh *multipart.FileHeader) (upload, error) {
	f, err := fh.Open()
	if err != nil {
		return upload{}, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, fmt.Errorf("read uploaded file: %w", err)
	}
	return upload{Name: fh.Filename, Data: data}, nil
}

// formFile parses the single required "file" field.
func formFile(c *fiber.Ctx) (upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return upload{}, errors.New("a file upload is required (field \"file\")")
	}
	up, err := readFileHeader(fh)
	if err != nil {
		return upload{}, err
	}
	if len(up.Data) == 0 {
		return upload{}, errors.New("uploaded file is empty")
	}
	return up, nil
}

// formFiles parses the repeated "files" field (with "file" as a fallback
// alias since some clients send the singular name for every part).
func formFiles(c *fiber.Ctx) ([]upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.New("a multipart upload is required")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		return nil, errors.New("at least one file upload is required (field \"files\")")
	}

	out := make([]upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readFileHeader(fh)
		if err != nil {
			return nil, err
		}
		if len(up.Data) == 0 {
			return nil, fmt.Errorf("uploaded file %q is empty", fh.Filename)
		}
		out = append(out, up)
	}
	return out, nil
}

// formOptions collects every scalar form value into the conversion options
// map, excluding the routing fields consumed by the handler itself.
func formOptions(c *fiber.Ctx, exclude ...string) convert.Options {
	form, err := c.MultipartForm()
	if err != nil {
		return convert.Options{}
	}
	skip := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		skip[k] = true
	}
	opts := make(convert.Options, len(form.Value))
	for k, vs := range form.Value {
		if skip[k] || len(vs) == 0 {
			continue
		}
		opts[k] = vs[0]
	}
	return opts
}

func formInt(c *fiber.Ctx, key string, def int) int {
	if v := c.FormValue(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func formFloat(c *fiber.Ctx, key string, def float64) float64 {
	if v := c.FormValue(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// parsePageList reads comma/space separated page numbers.
func parsePageList(v string) []int {
	var out []int
	for _, tok := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		if n, err := strconv.Atoi(strings.TrimSpace(tok)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// sendFile streams a binary result as an attachment with the MIME type
// derived from the filename extension.
func sendFile(c *fiber.Ctx, name string, data []byte) error {
	ext := strings.TrimPrefix(strings.ToLower(name[strings.LastIndex(name, ".")+1:]), ".")
	c.Set(fiber.HeaderContentType, format.MIMEType(ext))
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(data)
}

// zipFiles packs the named outputs into one archive.
func zipFiles(files []pdfops.NamedFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// installHints names the package that provides each tool, for actionable
// 500 responses when a binary is missing.
var installHints = map[string]string{
	tools.Soffice:      "install LibreOffice",
	tools.FFmpeg:       "install ffmpeg",
	tools.FFprobe:      "install ffmpeg (provides ffprobe)",
	tools.Ghostscript:  "install Ghostscript",
	tools.QPDF:         "install qpdf",
	tools.Tesseract:    "install tesseract-ocr",
	tools.OCRmyPDF:     "install ocrmypdf",
	tools.Pandoc:       "install pandoc",
	tools.EbookConvert: "install Calibre (provides ebook-convert)",
	tools.Magick:       "install ImageMagick",
}

// fail maps a service error onto the wire taxonomy: validation problems are
// 400, missing tools and tool failures are 500. The tool identity rides on
// typed errors, so hints never depend on parsing message text.
func fail(c *fiber.Ctx, err error) error {
	var unsupported *convert.UnsupportedPairError
	if errors.As(err, &unsupported) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     unsupported.Error(),
			"supported": format.Domains(),
		})
	}
	if errors.Is(err, pdfops.ErrNoValidPages) {
		return badRequest(c, err.Error())
	}

	var notFound *tools.NotFoundError
	if errors.As(err, &notFound) {
		u.Error("Required tool missing", "tool", notFound.Tool, "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"hint":  installHints[notFound.Tool],
		})
	}

	var toolErr *runner.ToolError
	if errors.As(err, &toolErr) {
		u.Error("Tool execution failed",
			"tool", toolErr.Tool, "exit_code", toolErr.ExitCode, "path", c.Path())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	u.Error("Request failed", "path", c.Path(), "error", err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
