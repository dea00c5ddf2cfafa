package handlers

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"omniconvert/internal/pdfops"
)

func requirePDF(up upload) bool {
	return strings.EqualFold(filepath.Ext(up.Name), ".pdf") ||
		strings.HasPrefix(string(up.Data[:min(5, len(up.Data))]), "%PDF-")
}

// pdfUpload parses the single "file" field and checks it looks like a PDF.
func pdfUpload(c *fiber.Ctx) (upload, bool, error) {
	up, err := formFile(c)
	if err != nil {
		return upload{}, false, err
	}
	if !requirePDF(up) {
		return upload{}, false, nil
	}
	return up, true, nil
}

// HandleMerge concatenates two or more PDFs in upload order.
func (s *Services) HandleMerge(c *fiber.Ctx) error {
	ups, err := formFiles(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if len(ups) < 2 {
		return badRequest(c, "merge requires at least 2 PDF files")
	}
	inputs := make([][]byte, 0, len(ups))
	for _, up := range ups {
		inputs = append(inputs, up.Data)
	}

	out, err := s.PDF.Merge(inputs)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, "merged.pdf", out)
}

// HandleSplit cuts a PDF into range groups. One group comes back as a plain
// PDF; several are zipped.
func (s *Services) HandleSplit(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "split requires a PDF upload")
	}
	ranges := c.FormValue("ranges")
	if ranges == "" {
		return badRequest(c, "a range specification is required (field \"ranges\", e.g. \"1-3;4-6\" or \"all\")")
	}

	files, err := s.PDF.Split(up.Data, ranges)
	if err != nil {
		return fail(c, err)
	}
	if len(files) == 1 {
		return sendFile(c, files[0].Name, files[0].Data)
	}
	archive, err := zipFiles(files)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-split.zip", archive)
}

func (s *Services) HandlePDFCompress(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "compress requires a PDF upload")
	}
	quality := c.FormValue("quality", "medium")

	out, err := s.PDF.Compress(c.Context(), up.Data, quality)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-compressed.pdf", out)
}

func (s *Services) HandlePDFRepair(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "repair requires a PDF upload")
	}

	out, err := s.PDF.Repair(c.Context(), up.Data)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-repaired.pdf", out)
}

func (s *Services) HandlePDFFlatten(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "flatten requires a PDF upload")
	}

	out, err := s.PDF.Flatten(c.Context(), up.Data)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-flattened.pdf", out)
}

func (s *Services) HandlePDFRotate(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "rotate requires a PDF upload")
	}
	angle := formInt(c, "angle", 90)
	if angle%90 != 0 {
		return badRequest(c, "rotation angle must be a multiple of 90")
	}
	pages := parsePageList(c.FormValue("pages"))

	out, err := s.PDF.Rotate(up.Data, angle, pages)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-rotated.pdf", out)
}

func (s *Services) HandlePDFExtractPages(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "extract-pages requires a PDF upload")
	}
	pages := parsePageList(c.FormValue("pages"))
	if len(pages) == 0 {
		return badRequest(c, "page numbers are required (field \"pages\", e.g. \"1,3,5\")")
	}

	out, err := s.PDF.ExtractPages(up.Data, pages)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-extracted.pdf", out)
}

func (s *Services) HandlePDFRemovePages(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "remove-pages requires a PDF upload")
	}
	pages := parsePageList(c.FormValue("pages"))
	if len(pages) == 0 {
		return badRequest(c, "page numbers are required (field \"pages\", e.g. \"1,3,5\")")
	}

	out, err := s.PDF.RemovePages(up.Data, pages)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-removed.pdf", out)
}

func (s *Services) HandlePDFPageNumbers(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "page-numbers requires a PDF upload")
	}

	out, err := s.PDF.AddPageNumbers(up.Data, pdfops.PageNumberOptions{
		Position: c.FormValue("position", "center"),
		FontSize: formInt(c, "fontSize", 12),
		Start:    formInt(c, "start", 1),
	})
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-numbered.pdf", out)
}

func (s *Services) HandlePDFWatermark(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "watermark requires a PDF upload")
	}
	text := c.FormValue("text")
	if text == "" {
		return badRequest(c, "watermark text is required (field \"text\")")
	}

	out, err := s.PDF.Watermark(up.Data, pdfops.WatermarkOptions{
		Text:     text,
		FontSize: formInt(c, "fontSize", 48),
		Opacity:  formFloat(c, "opacity", 0.3),
		Rotation: formFloat(c, "rotation", 45),
		Color:    c.FormValue("color"),
	})
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-watermarked.pdf", out)
}

// HandlePDFMetadata returns the document information dictionary plus page
// dimensions as JSON.
func (s *Services) HandlePDFMetadata(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "metadata requires a PDF upload")
	}

	md, err := s.PDF.ReadMetadata(up.Data)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(md)
}

// HandlePDFMetadataUpdate applies a partial information-dictionary update:
// only the fields present in the form change.
func (s *Services) HandlePDFMetadataUpdate(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "metadata update requires a PDF upload")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "a multipart upload is required")
	}
	var upd pdfops.MetadataUpdate
	pick := func(key string) *string {
		if vs, ok := form.Value[key]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	upd.Title = pick("title")
	upd.Author = pick("author")
	upd.Subject = pick("subject")
	upd.Creator = pick("creator")
	if upd.Title == nil && upd.Author == nil && upd.Subject == nil && upd.Creator == nil {
		return badRequest(c, "at least one metadata field is required (title, author, subject, creator)")
	}

	out, err := s.PDF.UpdateMetadata(up.Data, upd)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-metadata.pdf", out)
}

func (s *Services) HandlePDFAddPassword(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "add-password requires a PDF upload")
	}
	password := c.FormValue("password")
	if password == "" {
		return badRequest(c, "a password is required (field \"password\")")
	}

	out, err := s.PDF.AddPassword(c.Context(), up.Data, password)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-protected.pdf", out)
}

func (s *Services) HandlePDFRemovePassword(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "remove-password requires a PDF upload")
	}
	password := c.FormValue("password")
	if password == "" {
		return badRequest(c, "the current password is required (field \"password\")")
	}

	out, err := s.PDF.RemovePassword(c.Context(), up.Data, password)
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-unlocked.pdf", out)
}

// HandlePDFEdit overlays caller-provided text at a fixed position.
func (s *Services) HandlePDFEdit(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "edit requires a PDF upload")
	}
	text := c.FormValue("text")
	if text == "" {
		return badRequest(c, "text is required (field \"text\")")
	}

	out, err := s.PDF.EditText(up.Data, pdfops.EditTextOptions{
		Text:     text,
		X:        formFloat(c, "x", 72),
		Y:        formFloat(c, "y", 72),
		FontSize: formInt(c, "fontSize", 12),
		Color:    c.FormValue("color"),
		Pages:    parsePageList(c.FormValue("pages")),
	})
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-edited.pdf", out)
}
