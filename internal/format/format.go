// Package format holds the pure extension classifiers the dispatcher
// consults. No I/O, no state: an extension absent from every set is
// unsupported.
package format

import (
	"sort"
	"strings"
)

var officeExts = map[string]bool{
	"doc": true, "docx": true, "odt": true, "rtf": true, "txt": true,
	"xls": true, "xlsx": true, "ods": true, "csv": true,
	"ppt": true, "pptx": true, "odp": true,
}

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true,
	"tif": true, "tiff": true, "webp": true, "svg": true, "ico": true,
	"heic": true, "avif": true,
}

var videoExts = map[string]bool{
	"mp4": true, "mkv": true, "avi": true, "mov": true, "webm": true,
	"flv": true, "wmv": true, "mpg": true, "mpeg": true, "m4v": true,
	"3gp": true, "ts": true,
}

var audioExts = map[string]bool{
	"mp3": true, "wav": true, "flac": true, "aac": true, "ogg": true,
	"opus": true, "m4a": true, "wma": true, "aiff": true,
}

var ebookExts = map[string]bool{
	"epub": true, "mobi": true, "azw3": true, "fb2": true, "lit": true,
	"pdb": true, "cbz": true, "cbr": true,
}

var markupExts = map[string]bool{
	"html": true, "htm": true, "md": true, "markdown": true,
}

// Normalize lowercases an extension and strips a leading dot.
func Normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsOffice reports whether ext is an office-document format.
func IsOffice(ext string) bool { return officeExts[Normalize(ext)] }

// IsImage reports whether ext is a raster or vector image format.
func IsImage(ext string) bool { return imageExts[Normalize(ext)] }

// IsVideo reports whether ext is a video container format.
func IsVideo(ext string) bool { return videoExts[Normalize(ext)] }

// IsAudio reports whether ext is an audio container format.
func IsAudio(ext string) bool { return audioExts[Normalize(ext)] }

// IsMedia reports whether ext is either audio or video.
func IsMedia(ext string) bool { return IsVideo(ext) || IsAudio(ext) }

// IsEbook reports whether ext is an e-book format.
func IsEbook(ext string) bool { return ebookExts[Normalize(ext)] }

// IsMarkup reports whether ext is HTML or Markdown.
func IsMarkup(ext string) bool { return markupExts[Normalize(ext)] }

// IsPDF reports whether ext is pdf.
func IsPDF(ext string) bool { return Normalize(ext) == "pdf" }

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Domains lists every supported domain with its recognized extensions,
// served by /api/convert/formats and embedded in unsupported-pair errors.
func Domains() map[string][]string {
	return map[string][]string{
		"office": sorted(officeExts),
		"image":  sorted(imageExts),
		"video":  sorted(videoExts),
		"audio":  sorted(audioExts),
		"ebook":  sorted(ebookExts),
		"markup": sorted(markupExts),
		"pdf":    {"pdf"},
	}
}

var mimeTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"odt":  "application/vnd.oasis.opendocument.text",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"odp":  "application/vnd.oasis.opendocument.presentation",
	"rtf":  "application/rtf",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"html": "text/html",
	"htm":  "text/html",
	"md":   "text/markdown",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"avif": "image/avif",
	"mp4":  "video/mp4",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"flv":  "video/x-flv",
	"wmv":  "video/x-ms-wmv",
	"mpg":  "video/mpeg",
	"mpeg": "video/mpeg",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"aac":  "audio/aac",
	"ogg":  "audio/ogg",
	"opus": "audio/opus",
	"m4a":  "audio/mp4",
	"epub": "application/epub+zip",
	"mobi": "application/x-mobipocket-ebook",
	"azw3": "application/vnd.amazon.ebook",
	"fb2":  "application/x-fictionbook+xml",
	"zip":  "application/zip",
	"json": "application/json",
}

// MIMEType returns the content type for an extension, falling back to
// application/octet-stream.
func MIMEType(ext string) string {
	if m, ok := mimeTypes[Normalize(ext)]; ok {
		return m
	}
	return "application/octet-stream"
}
