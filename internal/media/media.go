// Package media handles all audio and video manipulation for the dubbing
// pipeline: demuxing, vocal separation, utterance cutting, duration
// stretching, track assembly, and final muxing. The Processor interface
// abstracts the tool chain so the pipeline can be tested without ffmpeg
// installed.
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when an input file has an extension the
// pipeline does not accept.
var ErrUnsupportedFormat = errors.New("media: unsupported input format")

// Kind classifies an input file.
type Kind int

const (
	// KindVideo inputs get their audio extracted and the dubbed track muxed
	// back over the original video stream.
	KindVideo Kind = iota + 1
	// KindAudio inputs skip demuxing and muxing.
	KindAudio
)

// videoExts and audioExts are the accepted input extensions, lowercase with
// the leading dot.
var (
	videoExts = map[string]bool{".mp4": true}
	audioExts = map[string]bool{".wav": true, ".mp3": true, ".flac": true}
)

// Classify reports whether path names a supported video or audio input.
// The decision is by extension only; probing the container is the tool
// chain's job.
func Classify(path string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExts[ext]:
		return KindVideo, nil
	case audioExts[ext]:
		return KindAudio, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Overlay places a dubbed utterance chunk at an offset on the assembled
// track.
type Overlay struct {
	// Path is the audio file to place.
	Path string
	// Start is the offset in seconds from the beginning of the track.
	Start float64
}

// Processor is the audio/video tool chain used by the pipeline.
//
// All paths returned are absolute or relative exactly as the implementation
// wrote them; callers must not assume a naming scheme.
type Processor interface {
	// ExtractAudio demuxes the audio track of a video file into a WAV file
	// under outDir and returns its path.
	ExtractAudio(ctx context.Context, videoPath, outDir string) (string, error)

	// SeparateVocals splits an audio file into a vocals track and a
	// background track (music and effects), both written under outDir.
	SeparateVocals(ctx context.Context, audioPath, outDir string) (vocals, background string, err error)

	// Cut copies the [start, end) span of audioPath (seconds) into outPath.
	Cut(ctx context.Context, audioPath string, start, end float64, outPath string) (string, error)

	// Duration returns the length of an audio file in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// StretchTo re-times audioPath so its duration becomes target seconds,
	// preserving pitch, and writes the result to outPath.
	StretchTo(ctx context.Context, audioPath string, target float64, outPath string) (string, error)

	// Assemble lays the overlays over the background track at their offsets
	// and writes the combined audio to outPath.
	Assemble(ctx context.Context, background string, overlays []Overlay, outPath string) (string, error)

	// Mux replaces the audio track of videoPath with audioPath, copying the
	// video stream, and writes the result to outPath.
	Mux(ctx context.Context, videoPath, audioPath, outPath string) (string, error)
}
