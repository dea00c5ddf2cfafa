package app

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniconvert/internal/convert"
	"omniconvert/internal/handlers"
	"omniconvert/internal/ocr"
	"omniconvert/internal/pdfops"
	"omniconvert/internal/tempfs"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

// newTestApp wires the full route surface against an empty toolset: pure
// pdfcpu operations work, anything needing an external binary fails with a
// typed missing-tool error.
func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := u.Config{}
	cfg.Limits.MaxUploadMB = 50
	timeouts := u.TimeoutsConfig{DefaultSecs: 30, DocumentSecs: 30, VideoSecs: 30, OCRSecs: 30}

	mgr, err := tempfs.NewManager(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)

	ts := tools.Toolset{}
	conv := convert.NewService(mgr, ts, timeouts, u.ChromeConfig{})
	svc := &handlers.Services{
		Convert: conv,
		PDF:     pdfops.NewService(mgr, ts, timeouts),
		OCR:     ocr.NewService(mgr, ts, timeouts, conv),
		Tools:   ts,
	}
	return SetupApp(cfg, svc)
}

type part struct {
	field    string
	filename string
	data     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		w, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), "body: %s", body)
	return out
}

// buildPDF constructs a minimal valid PDF so tests carry no binary fixtures.
func buildPDF(t *testing.T, pages int) []byte {
	t.Helper()
	var b bytes.Buffer
	var offsets []int
	add := func(body string) {
		offsets = append(offsets, b.Len())
		b.WriteString(body)
	}

	b.WriteString("%PDF-1.4\n")
	add("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	add(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [ %s] /Count %d >>\nendobj\n", kids, pages))
	for i := 0; i < pages; i++ {
		add(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", 3+i))
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return b.Bytes()
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	app := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "Not Found", body["error"])
}

func TestFormatsEndpoint(t *testing.T) {
	app := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/convert/formats", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	supported, ok := body["supported"].(map[string]any)
	require.True(t, ok)
	for _, domain := range []string{"office", "image", "video", "audio", "ebook", "pdf"} {
		assert.Contains(t, supported, domain)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime")
	assert.Contains(t, body, "memory")
}

func TestDepsEndpointListsEveryTool(t *testing.T) {
	app := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/deps", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	list, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, list, len(tools.All()))
	for _, entry := range list {
		st := entry.(map[string]any)
		assert.Equal(t, false, st["available"])
	}
}

func TestConvertWithoutFileIs400(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/convert", map[string]string{"format": "pdf"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConvertWithoutFormatIs400(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/convert", nil, part{"file", "a.docx", []byte("content")})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConvertUnsupportedPairListsDomains(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/convert",
		map[string]string{"format": "mp4"},
		part{"file", "report.docx", []byte("content")})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Contains(t, body["error"], "not supported")
	supported, ok := body["supported"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, supported, "video")
}

func TestConvertMissingToolIs500WithHint(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/convert",
		map[string]string{"format": "pdf"},
		part{"file", "report.docx", []byte("content")})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Contains(t, body["error"], "soffice")
	assert.Contains(t, body["hint"], "LibreOffice")
}

func TestMergeEndpoint(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/merge", nil,
		part{"files", "a.pdf", buildPDF(t, 1)},
		part{"files", "b.pdf", buildPDF(t, 2)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "merged.pdf")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
}

func TestMergeSingleFileIs400(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/merge", nil, part{"files", "a.pdf", buildPDF(t, 1)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSplitMultipleGroupsReturnsZip(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/split",
		map[string]string{"ranges": "1-2;3-4;5-6"},
		part{"file", "doc.pdf", buildPDF(t, 6)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.Len(t, zr.File, 3)
}

func TestSplitSingleGroupReturnsPlainPDF(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/split",
		map[string]string{"ranges": "1-2"},
		part{"file", "doc.pdf", buildPDF(t, 4)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestSplitAllOutOfRangeIs400(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/split",
		map[string]string{"ranges": "10-20"},
		part{"file", "doc.pdf", buildPDF(t, 3)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPDFMetadataEndpoint(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/pdf/metadata", nil, part{"file", "doc.pdf", buildPDF(t, 2)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, float64(2), body["pageCount"])
	pages, ok := body["pages"].([]any)
	require.True(t, ok)
	assert.Len(t, pages, 2)
}

func TestPDFRotateRejectsNonRightAngle(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/pdf/rotate",
		map[string]string{"angle": "45"},
		part{"file", "doc.pdf", buildPDF(t, 1)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPDFRotateEndpoint(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/pdf/rotate",
		map[string]string{"angle": "90"},
		part{"file", "doc.pdf", buildPDF(t, 2)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "doc-rotated.pdf")
}

func TestOCRImageRejectsNonImage(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/ocr/image", nil, part{"file", "doc.pdf", buildPDF(t, 1)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWatermarkRequiresText(t *testing.T) {
	app := newTestApp(t)
	req := multipartRequest(t, "/api/pdf/watermark", nil, part{"file", "doc.pdf", buildPDF(t, 1)})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
