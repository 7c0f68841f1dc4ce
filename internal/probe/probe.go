// internal/probe/probe.go

// Package probe inspects source files with ffprobe before a run. One JSON
// invocation covers everything the pipeline needs to know: geometry, frame
// count, and which passthrough streams exist.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Result describes the source file as reported by ffprobe.
type Result struct {
	Path         string
	FileSize     int64
	Format       string
	Duration     float64
	Width        int
	Height       int
	FrameRate    float64
	PixelFormat  string
	NBFrames     int
	Bitrate      int64
	VideoCodec   string
	HasAudio     bool
	HasSubtitles bool
}

// ffprobeOutput mirrors the JSON fields we read.
type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		PixFmt       string `json:"pix_fmt"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NBFrames     string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe runs ffprobe against path. executable may be empty to use ffprobe
// from PATH.
func Probe(ctx context.Context, executable, path string) (*Result, error) {
	if executable == "" {
		executable = "ffprobe"
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access input file: %w", err)
	}

	cmd := exec.CommandContext(ctx, executable,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	result, err := ParseJSON(out)
	if err != nil {
		return nil, err
	}
	result.Path = path
	result.FileSize = info.Size()
	return result, nil
}

// ParseJSON converts raw ffprobe JSON into a Result. The first video stream
// wins; audio and subtitle streams only set their presence flags.
func ParseJSON(data []byte) (*Result, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &Result{Format: parsed.Format.FormatName}
	for _, stream := range parsed.Streams {
		switch stream.CodecType {
		case "video":
			if result.Width != 0 {
				continue
			}
			result.Width = stream.Width
			result.Height = stream.Height
			result.PixelFormat = stream.PixFmt
			result.VideoCodec = stream.CodecName
			result.FrameRate = parseRate(stream.RFrameRate)
			if result.FrameRate == 0 {
				result.FrameRate = parseRate(stream.AvgFrameRate)
			}
			if n, err := strconv.Atoi(stream.NBFrames); err == nil {
				result.NBFrames = n
			}
		case "audio":
			result.HasAudio = true
		case "subtitle":
			result.HasSubtitles = true
		}
	}

	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			result.Duration = d
		}
	}
	if parsed.Format.BitRate != "" {
		if b, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
			result.Bitrate = b
		}
	}

	if result.Width == 0 || result.Height == 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	return result, nil
}

// EstimatedFrames returns the stream's frame count, falling back to
// duration times frame rate when the container does not carry nb_frames.
// Zero means the total is unknown.
func (r *Result) EstimatedFrames() int {
	if r.NBFrames > 0 {
		return r.NBFrames
	}
	if r.Duration > 0 && r.FrameRate > 0 {
		return int(math.Round(r.Duration * r.FrameRate))
	}
	return 0
}

// parseRate converts ffprobe's fractional rate notation, like 24000/1001,
// to a float. Malformed input yields zero.
func parseRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	if num, den, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
