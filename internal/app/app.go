package app

import (
	"github.com/gofiber/fiber/v2"

	"omniconvert/internal/handlers"
	u "omniconvert/internal/utils"
)

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, svc *handlers.Services) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxUploadMB * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	RegisterMiddleware(app, cfg)
	RegisterRoutes(app, svc)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, svc *handlers.Services) {
	api := app.Group("/api")

	api.Post("/convert", svc.HandleConvert)
	api.Post("/convert/compress-image", svc.HandleCompressImage)
	api.Post("/convert/batch", svc.HandleBatch)
	api.Get("/convert/formats", svc.HandleFormats)

	api.Post("/merge", svc.HandleMerge)
	api.Post("/split", svc.HandleSplit)

	pdf := api.Group("/pdf")
	pdf.Post("/compress", svc.HandlePDFCompress)
	pdf.Post("/repair", svc.HandlePDFRepair)
	pdf.Post("/flatten", svc.HandlePDFFlatten)
	pdf.Post("/rotate", svc.HandlePDFRotate)
	pdf.Post("/extract-pages", svc.HandlePDFExtractPages)
	pdf.Post("/remove-pages", svc.HandlePDFRemovePages)
	pdf.Post("/page-numbers", svc.HandlePDFPageNumbers)
	pdf.Post("/watermark", svc.HandlePDFWatermark)
	pdf.Post("/metadata", svc.HandlePDFMetadata)
	pdf.Post("/metadata/update", svc.HandlePDFMetadataUpdate)
	pdf.Post("/add-password", svc.HandlePDFAddPassword)
	pdf.Post("/remove-password", svc.HandlePDFRemovePassword)
	pdf.Post("/edit", svc.HandlePDFEdit)

	api.Post("/ocr/image", svc.HandleOCRImage)
	api.Post("/ocr/pdf", svc.HandleOCRPDF)

	api.Get("/health", svc.HandleHealth)
	api.Get("/deps", svc.HandleDeps)
}
