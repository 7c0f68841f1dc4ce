// integration_test.go
package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"upscalepipe/internal/command"
	"upscalepipe/internal/probe"
	"upscalepipe/internal/session"
)

const sampleMovieJSON = `{
	"streams": [
		{
			"codec_type": "video",
			"codec_name": "h264",
			"width": 1920,
			"height": 1080,
			"pix_fmt": "yuv420p",
			"r_frame_rate": "24000/1001",
			"avg_frame_rate": "24000/1001",
			"nb_frames": "3595"
		},
		{
			"codec_type": "audio",
			"codec_name": "aac"
		}
	],
	"format": {
		"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
		"duration": "149.941",
		"bit_rate": "8000000"
	}
}`

const sampleWebmJSON = `{
	"streams": [
		{
			"codec_type": "video",
			"codec_name": "vp9",
			"width": 1280,
			"height": 720,
			"pix_fmt": "yuv420p",
			"r_frame_rate": "30/1",
			"avg_frame_rate": "30/1"
		}
	],
	"format": {
		"format_name": "matroska,webm",
		"duration": "60.000000",
		"bit_rate": "2000000"
	}
}`

// TestProbeToPipelineArguments walks the same path main does: probe output
// becomes a probe.Result, the result shapes both command specs, and the
// specs produce coherent argument vectors.
func TestProbeToPipelineArguments(t *testing.T) {
	info, err := probe.ParseJSON([]byte(sampleMovieJSON))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if !info.HasAudio {
		t.Error("expected the sample movie to report an audio stream")
	}
	if info.HasSubtitles {
		t.Error("sample movie has no subtitle stream")
	}
	if got := info.EstimatedFrames(); got != 3595 {
		t.Errorf("EstimatedFrames() = %d, want 3595", got)
	}

	gen := command.GeneratorSpec{
		Executable: "vspipe",
		ScriptPath: "/scripts/upscale.vpy",
		Format:     command.SourceY4M,
		ScriptArgs: map[string]string{
			"input": "/videos/movie.mp4",
			"scale": "2",
		},
	}
	enc := command.EncoderSpec{
		Executable:   "ffmpeg",
		Format:       command.SourceY4M,
		OriginalPath: "/videos/movie.mp4",
		OutputPath:   "/videos/movie_upscaled.mp4",
		MapAudio:     info.HasAudio,
		MapSubtitles: info.HasSubtitles,
		VideoArgs:    qualityPresets[0].VideoArgs,
		OutputArgs:   outputArgs("/videos/movie_upscaled.mp4"),
		Preview:      true,
	}
	if err := gen.Validate(); err != nil {
		t.Fatalf("generator spec should be valid: %v", err)
	}
	if err := enc.Validate(); err != nil {
		t.Fatalf("encoder spec should be valid: %v", err)
	}

	genArgs := strings.Join(gen.Build(), " ")
	wantGen := "-c y4m -a input=/videos/movie.mp4 -a scale=2 /scripts/upscale.vpy -"
	if genArgs != wantGen {
		t.Errorf("generator args = %q, want %q", genArgs, wantGen)
	}

	encArgs := enc.Build()
	joined := strings.Join(encArgs, " ")
	for _, want := range []string{
		"-f yuv4mpegpipe -i pipe:0",
		"-i /videos/movie.mp4",
		"-map 1:a -c:a copy",
		"-c:v libx264",
		"-movflags +faststart",
		"-y /videos/movie_upscaled.mp4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("encoder args missing %q in %q", want, joined)
		}
	}
	if strings.Contains(joined, "1:s") {
		t.Errorf("encoder args map subtitles that do not exist: %q", joined)
	}
	if encArgs[len(encArgs)-1] != "pipe:1" {
		t.Errorf("preview output should be the last argument, got %q", encArgs[len(encArgs)-1])
	}
}

// TestRawGeometryFollowsScale checks that a raw pipeline carries the
// upscaled geometry computed from the probe, the way main assembles it.
func TestRawGeometryFollowsScale(t *testing.T) {
	info, err := probe.ParseJSON([]byte(sampleWebmJSON))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got := info.EstimatedFrames(); got != 1800 {
		t.Errorf("EstimatedFrames() = %d, want 1800 from duration and rate", got)
	}

	scale := 3
	enc := command.EncoderSpec{
		Executable:   "ffmpeg",
		Format:       command.SourceRaw,
		OriginalPath: "/videos/clip.webm",
		OutputPath:   "/videos/clip_upscaled.webm",
		Raw: command.RawVideo{
			PixelFormat: "yuv420p",
			Width:       info.Width * scale,
			Height:      info.Height * scale,
			FrameRate:   info.FrameRate,
		},
		VideoArgs: qualityPresets[2].VideoArgs,
	}
	if err := enc.Validate(); err != nil {
		t.Fatalf("raw encoder spec should be valid: %v", err)
	}

	joined := strings.Join(enc.Build(), " ")
	for _, want := range []string{
		"-f rawvideo",
		"-pix_fmt yuv420p",
		"-s 3840x2160",
		"-r 30",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("raw encoder args missing %q in %q", want, joined)
		}
	}
}

type stubFactory struct{}

var _ session.CommandFactory = stubFactory{}

func (stubFactory) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }

func (stubFactory) New(name string, args ...string) session.Command { return nil }

// TestValidationRejectsBeforeAnyProcessSpawns covers the whole refusal
// path: a bad script path must fail Start, publish nothing, and leave the
// session finished.
func TestValidationRejectsBeforeAnyProcessSpawns(t *testing.T) {
	dir := t.TempDir()
	cfg := session.Config{
		Generator: command.GeneratorSpec{
			Executable: "vspipe",
			ScriptPath: filepath.Join(dir, "missing.vpy"),
		},
		Encoder: command.EncoderSpec{
			Executable:   "ffmpeg",
			OriginalPath: filepath.Join(dir, "in.mp4"),
			OutputPath:   filepath.Join(dir, "out.mp4"),
		},
		Factory: stubFactory{},
	}

	s := session.New(cfg)
	err := s.Start()
	if err == nil {
		t.Fatal("Start should reject a missing script")
	}
	if !strings.Contains(err.Error(), "script does not exist") {
		t.Errorf("unexpected rejection: %v", err)
	}

	count := 0
	for range s.Events() {
		count++
	}
	if count != 0 {
		t.Errorf("rejected session published %d events, want none", count)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("rejected session never finished")
	}
	if s.State() != session.StateDone {
		t.Errorf("State() = %v, want done", s.State())
	}
	if s.Err() == nil {
		t.Error("Err() should report the validation failure")
	}
}
