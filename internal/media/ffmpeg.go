package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Compile-time assertion that FFmpeg implements Processor.
var _ Processor = (*FFmpeg)(nil)

// FFmpeg implements Processor by shelling out to ffmpeg, ffprobe, and demucs.
// All three binaries must be on PATH unless overridden via options.
type FFmpeg struct {
	ffmpegBin  string
	ffprobeBin string
	demucsBin  string
}

// FFmpegOption is a functional option for configuring an FFmpeg processor.
type FFmpegOption func(*FFmpeg)

// WithFFmpegPath overrides the ffmpeg binary location.
func WithFFmpegPath(path string) FFmpegOption {
	return func(f *FFmpeg) {
		f.ffmpegBin = path
	}
}

// WithFFprobePath overrides the ffprobe binary location.
func WithFFprobePath(path string) FFmpegOption {
	return func(f *FFmpeg) {
		f.ffprobeBin = path
	}
}

// WithDemucsPath overrides the demucs binary location.
func WithDemucsPath(path string) FFmpegOption {
	return func(f *FFmpeg) {
		f.demucsBin = path
	}
}

// NewFFmpeg creates an FFmpeg processor with the default binary names.
func NewFFmpeg(opts ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{
		ffmpegBin:  "ffmpeg",
		ffprobeBin: "ffprobe",
		demucsBin:  "demucs",
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// run executes bin with args, discarding stdout and keeping stderr for the
// error message. ffmpeg writes all diagnostics to stderr.
func run(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", bin, err, lastLines(stderr.String(), 4))
	}
	return nil
}

// lastLines returns the trailing n non-empty lines of s on a single line.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// ExtractAudio implements Processor.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, outDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	out := filepath.Join(outDir, base+"_audio.wav")

	// ffmpeg -y -i input -vn -ac 2 -ar 44100 output.wav
	err := run(ctx, f.ffmpegBin,
		"-y", "-i", videoPath,
		"-vn", "-ac", "2", "-ar", "44100",
		out,
	)
	if err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	return out, nil
}

// SeparateVocals implements Processor. It runs demucs in two-stem mode, which
// writes vocals.wav and no_vocals.wav under <outDir>/htdemucs/<base>/.
func (f *FFmpeg) SeparateVocals(ctx context.Context, audioPath, outDir string) (string, string, error) {
	err := run(ctx, f.demucsBin,
		"--two-stems=vocals",
		"-o", outDir,
		audioPath,
	)
	if err != nil {
		return "", "", fmt.Errorf("separate vocals: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	stemDir := filepath.Join(outDir, "htdemucs", base)
	return filepath.Join(stemDir, "vocals.wav"), filepath.Join(stemDir, "no_vocals.wav"), nil
}

// Cut implements Processor.
func (f *FFmpeg) Cut(ctx context.Context, audioPath string, start, end float64, outPath string) (string, error) {
	err := run(ctx, f.ffmpegBin,
		"-y",
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-i", audioPath,
		outPath,
	)
	if err != nil {
		return "", fmt.Errorf("cut [%s, %s): %w", formatSeconds(start), formatSeconds(end), err)
	}
	return outPath, nil
}

// Duration implements Processor.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("duration: %s: %w: %s", f.ffprobeBin, err, lastLines(stderr.String(), 2))
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("duration: parse ffprobe output %q: %w", stdout.String(), err)
	}
	return d, nil
}

// StretchTo implements Processor. The atempo filter preserves pitch but only
// accepts factors in [0.5, 2.0], so larger adjustments are chained.
func (f *FFmpeg) StretchTo(ctx context.Context, audioPath string, target float64, outPath string) (string, error) {
	if target <= 0 {
		return "", fmt.Errorf("stretch: target duration must be positive, got %v", target)
	}
	current, err := f.Duration(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("stretch: %w", err)
	}
	tempo := current / target

	err = run(ctx, f.ffmpegBin,
		"-y", "-i", audioPath,
		"-filter:a", atempoChain(tempo),
		outPath,
	)
	if err != nil {
		return "", fmt.Errorf("stretch to %s: %w", formatSeconds(target), err)
	}
	return outPath, nil
}

// atempoChain builds an atempo filter expression for an arbitrary positive
// tempo factor by chaining factors within the filter's [0.5, 2.0] range.
func atempoChain(tempo float64) string {
	var parts []string
	for tempo > 2.0 {
		parts = append(parts, "atempo=2.0")
		tempo /= 2.0
	}
	for tempo < 0.5 {
		parts = append(parts, "atempo=0.5")
		tempo /= 0.5
	}
	parts = append(parts, "atempo="+strconv.FormatFloat(tempo, 'f', 6, 64))
	return strings.Join(parts, ",")
}

// Assemble implements Processor. Each overlay is delayed to its offset and
// mixed over the background without renormalising, so the background keeps
// its original level.
func (f *FFmpeg) Assemble(ctx context.Context, background string, overlays []Overlay, outPath string) (string, error) {
	args := []string{"-y", "-i", background}
	for _, ov := range overlays {
		args = append(args, "-i", ov.Path)
	}

	var filter strings.Builder
	labels := []string{"[0:a]"}
	for i, ov := range overlays {
		delayMs := int(ov.Start * 1000)
		fmt.Fprintf(&filter, "[%d:a]adelay=%d|%d[d%d];", i+1, delayMs, delayMs, i)
		labels = append(labels, fmt.Sprintf("[d%d]", i))
	}
	fmt.Fprintf(&filter, "%samix=inputs=%d:duration=first:normalize=0[out]",
		strings.Join(labels, ""), len(labels))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[out]",
		outPath,
	)
	if err := run(ctx, f.ffmpegBin, args...); err != nil {
		return "", fmt.Errorf("assemble %d overlays: %w", len(overlays), err)
	}
	return outPath, nil
}

// Mux implements Processor.
func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outPath string) (string, error) {
	err := run(ctx, f.ffmpegBin,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v", "-map", "1:a",
		"-c:v", "copy",
		"-shortest",
		outPath,
	)
	if err != nil {
		return "", fmt.Errorf("mux: %w", err)
	}
	return outPath, nil
}

// formatSeconds renders a seconds value the way ffmpeg expects it.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
