// Package tools resolves the external conversion binaries the service
// shells out to. Resolution happens once at startup; the resulting Toolset
// is passed into the service layer so tests can substitute fake paths.
package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	u "omniconvert/internal/utils"
)

// Tool names used throughout the service layer.
const (
	Soffice      = "soffice"
	FFmpeg       = "ffmpeg"
	FFprobe      = "ffprobe"
	Ghostscript  = "gs"
	QPDF         = "qpdf"
	Tesseract    = "tesseract"
	OCRmyPDF     = "ocrmypdf"
	Pandoc       = "pandoc"
	EbookConvert = "ebook-convert"
	Magick       = "magick"
)

// Toolset maps a tool name to its resolved binary path. A missing tool has
// no entry; callers asking for it get ErrToolNotFound from Path.
type Toolset map[string]string

// Status describes one tool for the /api/deps endpoint.
type Status struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Path      string `json:"path"`
}

// envOverrides maps tool names to the environment variables that force a
// specific binary path. Env wins over config, config wins over discovery.
var envOverrides = map[string]string{
	Soffice:      "SOFFICE_BIN",
	FFmpeg:       "FFMPEG_BIN",
	FFprobe:      "FFPROBE_BIN",
	Ghostscript:  "GS_BIN",
	QPDF:         "QPDF_BIN",
	Tesseract:    "TESSERACT_BIN",
	OCRmyPDF:     "OCRMYPDF_BIN",
	Pandoc:       "PANDOC_BIN",
	EbookConvert: "EBOOK_CONVERT_BIN",
	Magick:       "MAGICK_BIN",
}

// conventionalPaths lists platform install locations checked after PATH.
func conventionalPaths(name string) []string {
	var dirs []string
	switch runtime.GOOS {
	case "darwin":
		dirs = []string{"/opt/homebrew/bin", "/usr/local/bin"}
		if name == Soffice {
			return append(
				prefixed(dirs, name),
				"/Applications/LibreOffice.app/Contents/MacOS/soffice",
			)
		}
	case "windows":
		if name == Soffice {
			return []string{`C:\Program Files\LibreOffice\program\soffice.exe`}
		}
		return nil
	default:
		dirs = []string{"/usr/bin", "/usr/local/bin", "/snap/bin"}
		if name == Soffice {
			return append(prefixed(dirs, name), "/usr/bin/libreoffice")
		}
	}
	return prefixed(dirs, name)
}

func prefixed(dirs []string, name string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, filepath.Join(d, name))
	}
	return out
}

// aliases are alternative binary names tried during PATH discovery.
var aliases = map[string][]string{
	Soffice: {"soffice", "libreoffice"},
	Magick:  {"magick", "convert"},
}

func configured(cfg u.ToolsConfig, name string) string {
	switch name {
	case Soffice:
		return cfg.Soffice
	case FFmpeg:
		return cfg.FFmpeg
	case FFprobe:
		return cfg.FFprobe
	case Ghostscript:
		return cfg.Ghostscript
	case QPDF:
		return cfg.QPDF
	case Tesseract:
		return cfg.Tesseract
	case OCRmyPDF:
		return cfg.OCRmyPDF
	case Pandoc:
		return cfg.Pandoc
	case EbookConvert:
		return cfg.EbookConvert
	case Magick:
		return cfg.Magick
	}
	return ""
}

// All is the full list of tools the service knows about.
func All() []string {
	return []string{
		Soffice, FFmpeg, FFprobe, Ghostscript, QPDF,
		Tesseract, OCRmyPDF, Pandoc, EbookConvert, Magick,
	}
}

// Resolve locates every known tool and returns the resulting Toolset.
// Tools that cannot be found are simply absent; the services report a
// descriptive error when first asked to use one.
func Resolve(cfg u.ToolsConfig) Toolset {
	ts := make(Toolset, len(All()))
	for _, name := range All() {
		if p := resolveOne(cfg, name); p != "" {
			ts[name] = p
		}
	}
	return ts
}

func resolveOne(cfg u.ToolsConfig, name string) string {
	if env := envOverrides[name]; env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if v := configured(cfg, name); v != "" {
		return v
	}

	names := aliases[name]
	if len(names) == 0 {
		names = []string{name}
	}
	for _, n := range names {
		if p, err := exec.LookPath(n); err == nil {
			return p
		}
	}
	for _, p := range conventionalPaths(name) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Path returns the resolved path for name or an error naming the missing
// tool, suitable for surfacing to the client as-is.
func (ts Toolset) Path(name string) (string, error) {
	if p, ok := ts[name]; ok && p != "" {
		return p, nil
	}
	return "", &NotFoundError{Tool: name}
}

// Has reports whether the tool was resolved.
func (ts Toolset) Has(name string) bool {
	_, ok := ts[name]
	return ok
}

// Statuses reports availability for every known tool.
func (ts Toolset) Statuses() []Status {
	out := make([]Status, 0, len(All()))
	for _, name := range All() {
		p := ts[name]
		out = append(out, Status{Name: name, Available: p != "", Path: p})
	}
	return out
}

// NotFoundError signals that a required external tool is not installed.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return e.Tool + " is not installed or not on PATH"
}
