// internal/command/builder_test.go
package command

import (
	"reflect"
	"strings"
	"testing"
)

func TestGeneratorSpecBuild(t *testing.T) {
	tests := []struct {
		name        string
		description string
		spec        GeneratorSpec
		want        []string
	}{
		{
			name:        "y4m output",
			description: "the container flag precedes the script and the stdout marker",
			spec: GeneratorSpec{
				Executable: "vspipe",
				ScriptPath: "/work/upscale.vpy",
				Format:     SourceY4M,
			},
			want: []string{"-c", "y4m", "/work/upscale.vpy", "-"},
		},
		{
			name:        "raw output",
			description: "raw streams need no container flag",
			spec: GeneratorSpec{
				Executable: "vspipe",
				ScriptPath: "/work/upscale.vpy",
				Format:     SourceRaw,
			},
			want: []string{"/work/upscale.vpy", "-"},
		},
		{
			name:        "script variables in stable order",
			description: "variables are forwarded sorted so invocations are reproducible",
			spec: GeneratorSpec{
				Executable: "vspipe",
				ScriptPath: "/work/upscale.vpy",
				Format:     SourceY4M,
				ScriptArgs: map[string]string{"scale": "2", "input": "/videos/in.mp4"},
			},
			want: []string{"-c", "y4m", "-a", "input=/videos/in.mp4", "-a", "scale=2", "/work/upscale.vpy", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.spec.Build()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Build() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestEncoderSpecBuild(t *testing.T) {
	base := EncoderSpec{
		Executable:   "ffmpeg",
		Format:       SourceY4M,
		OriginalPath: "/videos/in.mp4",
		OutputPath:   "/videos/out.mp4",
		VideoArgs:    []string{"-c:v", "libx264", "-crf", "16"},
	}

	t.Run("y4m input", func(t *testing.T) {
		got := base.Build()
		want := []string{
			"-f", "yuv4mpegpipe",
			"-i", "pipe:0",
			"-i", "/videos/in.mp4",
			"-map", "0:v:0",
			"-map_metadata", "1",
			"-c:v", "libx264", "-crf", "16",
			"-y", "/videos/out.mp4",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Build() = %v, expected %v", got, want)
		}
	})

	t.Run("raw input carries geometry", func(t *testing.T) {
		spec := base
		spec.Format = SourceRaw
		spec.Raw = RawVideo{PixelFormat: "yuv420p", Width: 3840, Height: 2160, FrameRate: 23.976}
		got := spec.Build()
		prefix := []string{"-f", "rawvideo", "-pix_fmt", "yuv420p", "-s", "3840x2160", "-r", "23.976", "-i", "pipe:0"}
		if len(got) < len(prefix) || !reflect.DeepEqual(got[:len(prefix)], prefix) {
			t.Errorf("Build() prefix = %v, expected %v", got, prefix)
		}
	})

	t.Run("audio and subtitle passthrough", func(t *testing.T) {
		spec := base
		spec.MapAudio = true
		spec.MapSubtitles = true
		got := strings.Join(spec.Build(), " ")
		for _, section := range []string{"-map 1:a -c:a copy", "-map 1:s -c:s copy"} {
			if !strings.Contains(got, section) {
				t.Errorf("expected %q in %q", section, got)
			}
		}
	})

	t.Run("preview adds a second output on stdout", func(t *testing.T) {
		spec := base
		spec.Preview = true
		got := spec.Build()
		tail := []string{"-map", "0:v:0", "-vf", "fps=1,scale=320:-1", "-c:v", "png", "-f", "image2pipe", "pipe:1"}
		if len(got) < len(tail) || !reflect.DeepEqual(got[len(got)-len(tail):], tail) {
			t.Errorf("Build() tail = %v, expected %v", got, tail)
		}
	})

	t.Run("aspect and output flags sit before the destination", func(t *testing.T) {
		spec := base
		spec.AspectRatio = "16:9"
		spec.OutputArgs = []string{"-movflags", "+faststart"}
		got := strings.Join(spec.Build(), " ")
		if !strings.Contains(got, "-aspect 16:9 -movflags +faststart -y /videos/out.mp4") {
			t.Errorf("unexpected output section in %q", got)
		}
	})
}

func TestSpecValidate(t *testing.T) {
	okRaw := RawVideo{PixelFormat: "yuv420p", Width: 1920, Height: 1080, FrameRate: 24}

	tests := []struct {
		name    string
		gen     *GeneratorSpec
		enc     *EncoderSpec
		wantErr string
	}{
		{
			name:    "generator without executable",
			gen:     &GeneratorSpec{ScriptPath: "s.vpy"},
			wantErr: "executable",
		},
		{
			name:    "generator without script",
			gen:     &GeneratorSpec{Executable: "vspipe"},
			wantErr: "script",
		},
		{
			name:    "encoder without output",
			enc:     &EncoderSpec{Executable: "ffmpeg", OriginalPath: "in.mp4"},
			wantErr: "output",
		},
		{
			name:    "raw without pixel format",
			enc:     &EncoderSpec{Executable: "ffmpeg", OriginalPath: "in.mp4", OutputPath: "out.mp4", Format: SourceRaw, Raw: RawVideo{Width: 1, Height: 1, FrameRate: 24}},
			wantErr: "pixel format",
		},
		{
			name:    "raw without dimensions",
			enc:     &EncoderSpec{Executable: "ffmpeg", OriginalPath: "in.mp4", OutputPath: "out.mp4", Format: SourceRaw, Raw: RawVideo{PixelFormat: "yuv420p", FrameRate: 24}},
			wantErr: "dimensions",
		},
		{
			name: "valid raw encoder",
			enc:  &EncoderSpec{Executable: "ffmpeg", OriginalPath: "in.mp4", OutputPath: "out.mp4", Format: SourceRaw, Raw: okRaw},
		},
		{
			name: "valid generator",
			gen:  &GeneratorSpec{Executable: "vspipe", ScriptPath: "s.vpy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.gen != nil {
				err = tt.gen.Validate()
			} else {
				err = tt.enc.Validate()
			}
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{24, "24"},
		{30, "30"},
		{23.976, "23.976"},
		{29.97, "29.97"},
	}
	for _, tt := range tests {
		if got := formatRate(tt.rate); got != tt.want {
			t.Errorf("formatRate(%v) = %q, expected %q", tt.rate, got, tt.want)
		}
	}
}
