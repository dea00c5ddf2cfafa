package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omniconvert/internal/runner"
	"omniconvert/internal/tempfs"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

func testTimeouts() u.TimeoutsConfig {
	return u.TimeoutsConfig{DefaultSecs: 60, DocumentSecs: 60, VideoSecs: 120, OCRSecs: 60}
}

func testChrome() u.ChromeConfig {
	return u.ChromeConfig{}
}

// newToolService resolves the real system toolset; tests using it skip
// when the required binary is absent.
func newToolService(t *testing.T) *Service {
	t.Helper()
	mgr, err := tempfs.NewManager(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)
	return NewService(mgr, tools.Resolve(u.ToolsConfig{}), testTimeouts(), testChrome())
}

func requireTool(t *testing.T, svc *Service, name string) {
	t.Helper()
	if !svc.tools.Has(name) {
		t.Skipf("%s not installed", name)
	}
}

func TestOptionsAccessors(t *testing.T) {
	opts := Options{
		"quality": "85",
		"margin":  "0.5",
		"bitrate": "2M",
		"strip":   "true",
		"broken":  "not-a-number",
	}

	assert.Equal(t, 85, opts.Int("quality", 10))
	assert.Equal(t, 10, opts.Int("missing", 10))
	assert.Equal(t, 10, opts.Int("broken", 10))
	assert.InDelta(t, 0.5, opts.Float("margin", 1.0), 0.001)
	assert.InDelta(t, 1.0, opts.Float("missing", 1.0), 0.001)
	assert.Equal(t, "2M", opts.Str("bitrate", ""))
	assert.Equal(t, "def", opts.Str("missing", "def"))
	assert.True(t, opts.Bool("strip"))
	assert.False(t, opts.Bool("missing"))
	assert.False(t, opts.Bool("broken"))
}

func TestStagePreservesFilename(t *testing.T) {
	svc := newToolService(t)

	dir, inPath, cleanup, err := svc.stage([]byte("hello world"), "report.docx")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "report.docx", filepath.Base(inPath))
	assert.Equal(t, dir, filepath.Dir(inPath))
	data, err := os.ReadFile(inPath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestStageCleanupRemovesWorkspace(t *testing.T) {
	svc := newToolService(t)

	dir, _, cleanup, err := svc.stage([]byte("x"), "a.txt")
	require.NoError(t, err)
	cleanup()

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestReadOutputRejectsTinyFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0o644))

	_, err := readOutput(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unusually small")
}

func TestReadOutputMissingFile(t *testing.T) {
	_, err := readOutput(filepath.Join(t.TempDir(), "never-written.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not produced")
}

func TestConvertDocumentReportsMissingTool(t *testing.T) {
	mgr, err := tempfs.NewManager(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)
	svc := NewService(mgr, tools.Toolset{}, testTimeouts(), testChrome())

	_, err = svc.ConvertDocument(context.Background(), []byte("x"), "a.docx", "pdf")
	require.Error(t, err)

	var notFound *tools.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, tools.Soffice, notFound.Tool)
}

func TestConvertMediaRejectsUnknownTarget(t *testing.T) {
	mgr, err := tempfs.NewManager(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)
	svc := NewService(mgr, tools.Toolset{tools.FFmpeg: "/usr/bin/ffmpeg"}, testTimeouts(), testChrome())

	_, err = svc.ConvertMedia(context.Background(), []byte("x"), "a.mp4", "docx", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported media target")
}

func TestVideoArgsAppliesOptions(t *testing.T) {
	args, err := videoArgs("in.mov", "out.mp4", "mp4", Options{
		"crf":        "23",
		"fps":        "30",
		"resolution": "1280:720",
	})
	require.NoError(t, err)

	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "aac")
	assert.Contains(t, args, "+faststart")
	assert.Contains(t, args, "-crf")
	assert.Contains(t, args, "23")
	assert.Contains(t, args, "scale=1280:720")
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestVideoArgsIgnoresOutOfRangeValues(t *testing.T) {
	args, err := videoArgs("in.mov", "out.mkv", "mkv", Options{"crf": "99", "fps": "500"})
	require.NoError(t, err)
	assert.NotContains(t, args, "-crf")
	assert.NotContains(t, args, "-r")
}

func TestAudioArgsLossyBitrateOnly(t *testing.T) {
	lossy, err := audioArgs("in.wav", "out.mp3", "mp3", Options{"audioBitrate": "192"})
	require.NoError(t, err)
	assert.Contains(t, lossy, "-b:a")
	assert.Contains(t, lossy, "192k")

	lossless, err := audioArgs("in.mp3", "out.flac", "flac", Options{"audioBitrate": "192"})
	require.NoError(t, err)
	assert.NotContains(t, lossless, "-b:a")
}

func TestGifArgsBuildsPaletteGraph(t *testing.T) {
	args := gifArgs("in.mp4", "out.gif", Options{"fps": "15", "width": "320"})

	var filter string
	for i, a := range args {
		if a == "-vf" {
			filter = args[i+1]
		}
	}
	assert.Contains(t, filter, "fps=15")
	assert.Contains(t, filter, "scale=320:-1")
	assert.Contains(t, filter, "palettegen")
	assert.Contains(t, filter, "paletteuse")
	assert.Contains(t, args, "-loop")
}

func TestGeometry(t *testing.T) {
	assert.Equal(t, "800x600", geometry(800, 600))
	assert.Equal(t, "800", geometry(800, 0))
	assert.Equal(t, "x600", geometry(0, 600))
}

func TestConvertImageRoundTrip(t *testing.T) {
	svc := newToolService(t)
	requireTool(t, svc, tools.Magick)
	ctx := context.Background()

	// Have ImageMagick synthesize the fixture so the test carries no
	// binary blobs.
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	magick, err := svc.tools.Path(tools.Magick)
	require.NoError(t, err)
	res, err := runner.Run(ctx, tools.Magick, magick, []string{"-size", "64x64", "xc:red", src}, 30_000_000_000)
	require.NoError(t, err)
	require.Zero(t, res.ExitCode, res.Stderr)
	input, err := os.ReadFile(src)
	require.NoError(t, err)

	out, err := svc.ConvertImage(ctx, input, "src.png", "jpg", Options{"quality": "90"})
	require.NoError(t, err)
	assert.Greater(t, len(out), minOutputSize)
	// JPEG SOI marker.
	assert.Equal(t, []byte{0xFF, 0xD8}, out[:2])
}

func TestCompressImageKeepsOriginalWhenLarger(t *testing.T) {
	svc := newToolService(t)
	requireTool(t, svc, tools.Magick)
	ctx := context.Background()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	magick, err := svc.tools.Path(tools.Magick)
	require.NoError(t, err)
	res, err := runner.Run(ctx, tools.Magick, magick, []string{"-size", "32x32", "xc:blue", "-quality", "20", src}, 30_000_000_000)
	require.NoError(t, err)
	require.Zero(t, res.ExitCode, res.Stderr)
	input, err := os.ReadFile(src)
	require.NoError(t, err)

	// Re-compressing a tiny, already heavily compressed JPEG at a higher
	// quality would grow it; the original must be returned instead.
	out, err := svc.CompressImage(ctx, input, "src.jpg", Options{"quality": "100"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), len(input))
}
