package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"omniconvert/internal/format"
	"omniconvert/internal/runner"
	"omniconvert/internal/tools"
	u "omniconvert/internal/utils"
)

// codecPreset pins a codec pair per target container instead of trusting
// ffmpeg's defaults, maximizing playback compatibility.
type codecPreset struct {
	video string
	audio string
	extra []string
}

var videoPresets = map[string]codecPreset{
	"mp4":  {video: "libx264", audio: "aac", extra: []string{"-movflags", "+faststart", "-pix_fmt", "yuv420p"}},
	"m4v":  {video: "libx264", audio: "aac", extra: []string{"-pix_fmt", "yuv420p"}},
	"mov":  {video: "libx264", audio: "aac", extra: []string{"-pix_fmt", "yuv420p"}},
	"mkv":  {video: "libx264", audio: "aac"},
	"webm": {video: "libvpx-vp9", audio: "libopus"},
	"avi":  {video: "mpeg4", audio: "libmp3lame"},
	"wmv":  {video: "wmv2", audio: "wmav2"},
	"mpg":  {video: "mpeg2video", audio: "mp2"},
	"mpeg": {video: "mpeg2video", audio: "mp2"},
	"flv":  {video: "flv", audio: "libmp3lame"},
	"3gp":  {video: "libx264", audio: "aac"},
	"ts":   {video: "libx264", audio: "aac"},
}

var audioCodecs = map[string]string{
	"mp3":  "libmp3lame",
	"wav":  "pcm_s16le",
	"flac": "flac",
	"aac":  "aac",
	"m4a":  "aac",
	"ogg":  "libvorbis",
	"opus": "libopus",
	"wma":  "wmav2",
	"aiff": "pcm_s16be",
}

// ConvertMedia transcodes audio or video to targetFormat through ffmpeg.
// GIF output goes through a dedicated palette filter graph.
func (s *Service) ConvertMedia(ctx context.Context, input []byte, filename, targetFormat string, opts Options) ([]byte, error) {
	ffmpeg, err := s.tools.Path(tools.FFmpeg)
	if err != nil {
		return nil, err
	}
	target := format.Normalize(targetFormat)

	dir, inPath, cleanup, err := s.stage(input, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outPath := filepath.Join(dir, "out."+target)

	if d := s.probeDuration(ctx, inPath); d > 0 {
		u.Info("Transcoding media", "source", filepath.Base(filename), "target", target, "duration_secs", d)
	}

	var args []string
	switch {
	case target == "gif":
		args = gifArgs(inPath, outPath, opts)
	case format.IsAudio(target):
		args, err = audioArgs(inPath, outPath, target, opts)
	case format.IsVideo(target):
		args, err = videoArgs(inPath, outPath, target, opts)
	default:
		return nil, fmt.Errorf("unsupported media target format: %s", targetFormat)
	}
	if err != nil {
		return nil, err
	}

	res, err := runner.Run(ctx, tools.FFmpeg, ffmpeg, args, s.videoTimeout())
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &runner.ToolError{Tool: tools.FFmpeg, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return readOutput(outPath)
}

// probeDuration asks ffprobe for the container duration in seconds.
// Returns 0 when ffprobe is absent or the input has no duration; the
// transcode proceeds either way.
func (s *Service) probeDuration(ctx context.Context, inPath string) float64 {
	ffprobe, err := s.tools.Path(tools.FFprobe)
	if err != nil {
		return 0
	}
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inPath,
	}
	res, err := runner.Run(ctx, tools.FFprobe, ffprobe, args, s.defaultTimeout())
	if err != nil || res.ExitCode != 0 {
		return 0
	}
	d, _ := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	return d
}

func baseArgs(inPath string) []string {
	return []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y", "-i", inPath}
}

func videoArgs(inPath, outPath, target string, opts Options) ([]string, error) {
	preset, ok := videoPresets[target]
	if !ok {
		return nil, fmt.Errorf("no codec preset for container: %s", target)
	}

	args := append(baseArgs(inPath), "-c:v", preset.video, "-c:a", preset.audio)
	args = append(args, preset.extra...)

	if crf := opts.Int("crf", 0); crf > 0 && crf <= 51 {
		args = append(args, "-crf", strconv.Itoa(crf))
	}
	if br := opts.Str("bitrate", ""); br != "" {
		args = append(args, "-b:v", br)
	}
	if fps := opts.Int("fps", 0); fps > 0 && fps <= 120 {
		args = append(args, "-r", strconv.Itoa(fps))
	}
	if res := opts.Str("resolution", ""); res != "" {
		args = append(args, "-vf", "scale="+res)
	}
	return append(args, outPath), nil
}

func audioArgs(inPath, outPath, target string, opts Options) ([]string, error) {
	codec, ok := audioCodecs[target]
	if !ok {
		return nil, fmt.Errorf("no codec preset for audio format: %s", target)
	}

	args := append(baseArgs(inPath), "-vn", "-c:a", codec)
	if br := opts.Int("audioBitrate", 0); br > 0 {
		switch target {
		case "mp3", "aac", "m4a", "ogg", "opus":
			args = append(args, "-b:a", fmt.Sprintf("%dk", br))
		}
	}
	if sr := opts.Int("sampleRate", 0); sr > 0 {
		args = append(args, "-ar", strconv.Itoa(sr))
	}
	if ch := opts.Int("channels", 0); ch == 1 || ch == 2 {
		args = append(args, "-ac", strconv.Itoa(ch))
	}
	return append(args, outPath), nil
}

// gifArgs builds the palette filter graph from scratch; appending to the
// generic video argument vector would fight the palette filters.
func gifArgs(inPath, outPath string, opts Options) []string {
	fps := opts.Int("fps", 10)
	if fps <= 0 || fps > 50 {
		fps = 10
	}
	width := opts.Int("width", 480)
	if width <= 0 || width > 1920 {
		width = 480
	}
	filter := fmt.Sprintf(
		"fps=%d,scale=%d:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse",
		fps, width,
	)
	return append(baseArgs(inPath), "-vf", filter, "-loop", "0", outPath)
}
