package handlers

import (
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"omniconvert/internal/format"
)

// HandleOCRImage extracts text from an uploaded image. With detailed=true
// the response includes word-level bounding boxes and confidences.
func (s *Services) HandleOCRImage(c *fiber.Ctx) error {
	up, err := formFile(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !format.IsImage(filepath.Ext(up.Name)) {
		return badRequest(c, "OCR requires an image upload")
	}
	lang := c.FormValue("lang")
	detailed, _ := strconv.ParseBool(c.FormValue("detailed"))

	if detailed {
		res, err := s.OCR.RecognizeImageDetailed(c.Context(), up.Data, up.Name, lang)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(res)
	}

	text, err := s.OCR.RecognizeImage(c.Context(), up.Data, up.Name, lang)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"text": text})
}

// HandleOCRPDF returns a searchable version of the uploaded PDF.
func (s *Services) HandleOCRPDF(c *fiber.Ctx) error {
	up, ok, err := pdfUpload(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !ok {
		return badRequest(c, "OCR requires a PDF upload")
	}

	out, err := s.OCR.SearchablePDF(c.Context(), up.Data, c.FormValue("lang"))
	if err != nil {
		return fail(c, err)
	}
	return sendFile(c, baseName(up.Name)+"-searchable.pdf", out)
}
