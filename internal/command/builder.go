// internal/command/builder.go

// Package command assembles the argument vectors for the two pipeline
// processes. Builders are pure; nothing here touches the filesystem or
// starts anything.
package command

import (
	"fmt"
	"sort"
	"strconv"
)

// SourceFormat selects how the generator frames its output stream.
type SourceFormat int

const (
	// SourceY4M wraps frames in the YUV4MPEG2 container, which carries its
	// own geometry and timing.
	SourceY4M SourceFormat = iota
	// SourceRaw is headerless video; the encoder needs explicit geometry.
	SourceRaw
)

func (f SourceFormat) String() string {
	if f == SourceRaw {
		return "raw"
	}
	return "y4m"
}

// DefaultPreviewWidth is the scaled width of preview stills.
const DefaultPreviewWidth = 320

// GeneratorSpec describes one generator invocation. The script does the
// actual frame synthesis; the generator just runs it and streams the
// result to standard output.
type GeneratorSpec struct {
	Executable string
	ScriptPath string
	Format     SourceFormat

	// ScriptArgs are forwarded to the script as key=value variables.
	ScriptArgs map[string]string
}

// Build returns the generator's argument vector. Output always goes to
// standard output.
func (g GeneratorSpec) Build() []string {
	var args []string
	if g.Format == SourceY4M {
		args = append(args, "-c", "y4m")
	}
	for _, kv := range sortedPairs(g.ScriptArgs) {
		args = append(args, "-a", kv)
	}
	args = append(args, g.ScriptPath, "-")
	return args
}

// Validate reports the first problem that would make the invocation
// unusable.
func (g GeneratorSpec) Validate() error {
	if g.Executable == "" {
		return fmt.Errorf("generator executable is required")
	}
	if g.ScriptPath == "" {
		return fmt.Errorf("generator script path is required")
	}
	return nil
}

// RawVideo is the geometry the encoder needs to interpret a headerless
// stream.
type RawVideo struct {
	PixelFormat string
	Width       int
	Height      int
	FrameRate   float64
}

// EncoderSpec describes one encoder invocation. The encoder reads the
// generated stream on standard input and the original file as a second
// input for passthrough streams and metadata.
type EncoderSpec struct {
	Executable   string
	Format       SourceFormat
	Raw          RawVideo // required when Format is SourceRaw
	OriginalPath string
	OutputPath   string

	// MapAudio and MapSubtitles copy the original's streams into the
	// output untouched.
	MapAudio     bool
	MapSubtitles bool

	// VideoArgs are the codec flags for the main output.
	VideoArgs []string

	// AspectRatio optionally overrides the display aspect, for sources
	// with non-square pixels.
	AspectRatio string

	// OutputArgs are appended before the destination, for container level
	// flags.
	OutputArgs []string

	// Preview adds a second output of one scaled PNG still per second on
	// standard output.
	Preview      bool
	PreviewWidth int
}

// Build assembles the encoder arguments in fixed sections: piped input,
// original input, stream maps, codec flags, output shaping, destination,
// and the optional preview output on pipe:1.
func (e EncoderSpec) Build() []string {
	var args []string

	// Piped input. Raw streams need the full geometry up front; Y4M
	// carries its own.
	switch e.Format {
	case SourceRaw:
		args = append(args,
			"-f", "rawvideo",
			"-pix_fmt", e.Raw.PixelFormat,
			"-s", fmt.Sprintf("%dx%d", e.Raw.Width, e.Raw.Height),
			"-r", formatRate(e.Raw.FrameRate),
		)
	default:
		args = append(args, "-f", "yuv4mpegpipe")
	}
	args = append(args, "-i", "pipe:0")

	// Original input.
	args = append(args, "-i", e.OriginalPath)

	// Stream maps. Video always comes from the pipe; everything else is
	// copied from the original.
	args = append(args, "-map", "0:v:0")
	if e.MapAudio {
		args = append(args, "-map", "1:a", "-c:a", "copy")
	}
	if e.MapSubtitles {
		args = append(args, "-map", "1:s", "-c:s", "copy")
	}
	args = append(args, "-map_metadata", "1")

	// Codec flags.
	args = append(args, e.VideoArgs...)

	// Output shaping and destination.
	if e.AspectRatio != "" {
		args = append(args, "-aspect", e.AspectRatio)
	}
	args = append(args, e.OutputArgs...)
	args = append(args, "-y", e.OutputPath)

	// Preview stills.
	if e.Preview {
		width := e.PreviewWidth
		if width <= 0 {
			width = DefaultPreviewWidth
		}
		args = append(args,
			"-map", "0:v:0",
			"-vf", fmt.Sprintf("fps=1,scale=%d:-1", width),
			"-c:v", "png",
			"-f", "image2pipe",
			"pipe:1",
		)
	}
	return args
}

// Validate reports the first problem that would make the invocation
// unusable.
func (e EncoderSpec) Validate() error {
	if e.Executable == "" {
		return fmt.Errorf("encoder executable is required")
	}
	if e.OriginalPath == "" {
		return fmt.Errorf("original input path is required")
	}
	if e.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if e.Format == SourceRaw {
		if e.Raw.PixelFormat == "" {
			return fmt.Errorf("raw input requires a pixel format")
		}
		if e.Raw.Width <= 0 || e.Raw.Height <= 0 {
			return fmt.Errorf("raw input requires explicit dimensions")
		}
		if e.Raw.FrameRate <= 0 {
			return fmt.Errorf("raw input requires a frame rate")
		}
	}
	return nil
}

// sortedPairs renders a variable map as key=value strings in a stable
// order.
func sortedPairs(vars map[string]string) []string {
	if len(vars) == 0 {
		return nil
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + vars[k]
	}
	return pairs
}

// formatRate renders a frame rate without a fractional part when it is
// whole.
func formatRate(rate float64) string {
	if rate == float64(int64(rate)) {
		return strconv.FormatInt(int64(rate), 10)
	}
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
