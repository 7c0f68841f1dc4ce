// main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-hclog"
	"github.com/manifoldco/promptui"
	"github.com/schollz/progressbar/v3"

	"upscalepipe/internal/command"
	"upscalepipe/internal/event"
	"upscalepipe/internal/preflight"
	"upscalepipe/internal/probe"
	"upscalepipe/internal/session"
	"upscalepipe/internal/ui"
	"upscalepipe/internal/validation"
)

const (
	generatorBin = "vspipe"
	encoderBin   = "ffmpeg"
	proberBin    = "ffprobe"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)
)

// qualityPreset bundles the encoder settings behind one menu entry.
type qualityPreset struct {
	Name        string
	Description string
	VideoArgs   []string
}

var qualityPresets = []qualityPreset{
	{
		Name:        "High",
		Description: "x264 slow, CRF 16, keeps the upscaled detail",
		VideoArgs:   []string{"-c:v", "libx264", "-preset", "slow", "-crf", "16", "-pix_fmt", "yuv420p"},
	},
	{
		Name:        "Balanced",
		Description: "x264 medium, CRF 19",
		VideoArgs:   []string{"-c:v", "libx264", "-preset", "medium", "-crf", "19", "-pix_fmt", "yuv420p"},
	},
	{
		Name:        "Fast",
		Description: "x264 veryfast, CRF 22, largest files",
		VideoArgs:   []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "22", "-pix_fmt", "yuv420p"},
	},
}

var scaleChoices = []int{2, 3, 4}

func main() {
	fmt.Println(titleStyle.Render("🎬 UpscalePipe"))
	fmt.Println("AI video upscaling with VapourSynth and FFmpeg")
	fmt.Println()

	logger := newLogger()

	if report := preflight.Run(preflight.Check{
		GeneratorExecutable: generatorBin,
		EncoderExecutable:   encoderBin,
		ProbeExecutable:     proberBin,
	}); !report.OK() {
		for _, e := range report.Errors {
			fmt.Println(errorStyle.Render("❌ " + e))
		}
		fmt.Println("Install VapourSynth and FFmpeg, then try again.")
		os.Exit(1)
	}

	scriptPath, err := promptPath("📜 VapourSynth script path", "", validation.ValidateScriptPath)
	exitOnPromptErr(err)

	inputPath, err := promptPath("📁 Source video path", "", validation.ValidateInputPath)
	exitOnPromptErr(err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	info, err := probe.Probe(ctx, proberBin, inputPath)
	cancel()
	if err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("❌ Error reading video: %v", err)))
		os.Exit(1)
	}
	ui.DisplayVideoInfo(info)

	outputPath, err := promptPath("💾 Output path", defaultOutputPath(inputPath), validation.ValidateOutputPath)
	exitOnPromptErr(err)

	scale, err := selectScale(info)
	exitOnPromptErr(err)

	preset, err := selectPreset()
	exitOnPromptErr(err)

	format, err := selectFormat()
	exitOnPromptErr(err)

	preview := confirmPreview()

	warnOnResources(outputPath, info, scale)

	totalFrames := info.EstimatedFrames()
	cfg := session.Config{
		Generator: command.GeneratorSpec{
			Executable: generatorBin,
			ScriptPath: scriptPath,
			Format:     format,
			ScriptArgs: map[string]string{
				"input": inputPath,
				"scale": strconv.Itoa(scale),
			},
		},
		Encoder: command.EncoderSpec{
			Executable:   encoderBin,
			Format:       format,
			OriginalPath: inputPath,
			OutputPath:   outputPath,
			MapAudio:     info.HasAudio,
			MapSubtitles: info.HasSubtitles,
			VideoArgs:    preset.VideoArgs,
			OutputArgs:   outputArgs(outputPath),
			Preview:      preview,
		},
		TotalFrames: totalFrames,
		Logger:      logger,
	}
	if format == command.SourceRaw {
		cfg.Encoder.Raw = command.RawVideo{
			PixelFormat: "yuv420p",
			Width:       info.Width * scale,
			Height:      info.Height * scale,
			FrameRate:   info.FrameRate,
		}
	}

	sess := session.New(cfg)

	fmt.Println()
	fmt.Println(promptStyle.Render(fmt.Sprintf("🔄 Upscaling %dx%d → %dx%d",
		info.Width, info.Height, info.Width*scale, info.Height*scale)))

	if err := sess.Start(); err != nil {
		fmt.Println(errorStyle.Render(fmt.Sprintf("❌ Could not start: %v", err)))
		os.Exit(1)
	}

	// First interrupt stops gracefully so the output stays playable, the
	// second force quits.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println()
		fmt.Println(warnStyle.Render("⚠️  Stopping, letting the encoder finalize. Press Ctrl+C again to force quit."))
		sess.Cancel()
		<-sigCh
		fmt.Println()
		fmt.Println(errorStyle.Render("❌ Force quitting"))
		sess.Kill()
	}()

	runProgress(sess, totalFrames)

	res := sess.Result()
	ui.DisplayRunSummary(res)
	switch {
	case res == nil:
		os.Exit(1)
	case res.Success:
		fmt.Println(successStyle.Render("✅ Done!"))
	case res.Canceled:
		os.Exit(130)
	default:
		os.Exit(1)
	}
}

// runProgress renders the event stream as a progress bar until the
// session finishes.
func runProgress(sess *session.Session, totalFrames int) {
	bar := newBar(totalFrames)
	for ev := range sess.Events() {
		switch ev.Type {
		case event.TypeProgress:
			if ev.IsStopping {
				bar.Describe("🛑 Stopping")
			} else if ev.FPS > 0 {
				bar.Describe(fmt.Sprintf("🎬 Upscaling at %.1f fps", ev.FPS))
			}
			if ev.CurrentFrame > 0 {
				_ = bar.Set(ev.CurrentFrame)
			}
		case event.TypePreviewFrame:
			// Meaningful to GUI consumers; the summary reports the count.
		case event.TypeComplete:
			_ = bar.Finish()
		case event.TypeError:
			// The summary panel carries the message.
		}
	}
	fmt.Println()
	<-sess.Done()
}

func newBar(totalFrames int) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription("🎬 Upscaling"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
	}
	if totalFrames <= 0 {
		return progressbar.NewOptions(-1, opts...)
	}
	return progressbar.NewOptions(totalFrames, opts...)
}

// promptPath asks for a path until validate accepts it, then returns the
// cleaned form.
func promptPath(label, def string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Default:  def,
		Validate: validate,
	}
	result, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return validation.CleanPath(result), nil
}

func selectScale(info *probe.Result) (int, error) {
	items := make([]string, len(scaleChoices))
	for i, s := range scaleChoices {
		items[i] = fmt.Sprintf("%d× (%dx%d → %dx%d)",
			s, info.Width, info.Height, info.Width*s, info.Height*s)
	}
	sel := promptui.Select{Label: "🔍 Upscale factor", Items: items}
	idx, _, err := sel.Run()
	if err != nil {
		return 0, err
	}
	return scaleChoices[idx], nil
}

func selectPreset() (qualityPreset, error) {
	items := make([]string, len(qualityPresets))
	for i, p := range qualityPresets {
		items[i] = fmt.Sprintf("%s (%s)", p.Name, p.Description)
	}
	sel := promptui.Select{Label: "🎚  Quality", Items: items}
	idx, _, err := sel.Run()
	if err != nil {
		return qualityPreset{}, err
	}
	return qualityPresets[idx], nil
}

func selectFormat() (command.SourceFormat, error) {
	sel := promptui.Select{
		Label: "🔌 Pipe format",
		Items: []string{
			"Y4M (recommended, self describing)",
			"Raw frames (headerless, explicit geometry)",
		},
	}
	idx, _, err := sel.Run()
	if err != nil {
		return command.SourceY4M, err
	}
	if idx == 1 {
		return command.SourceRaw, nil
	}
	return command.SourceY4M, nil
}

func confirmPreview() bool {
	prompt := promptui.Prompt{Label: "🖼  Stream preview frames", IsConfirm: true, Default: "y"}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
			exitOnPromptErr(err)
		}
		return false
	}
	return true
}

// warnOnResources surfaces memory and disk pressure before the run starts
// and lets the user back out.
func warnOnResources(outputPath string, info *probe.Result, scale int) {
	report := preflight.Run(preflight.Check{
		GeneratorExecutable: generatorBin,
		EncoderExecutable:   encoderBin,
		ProbeExecutable:     proberBin,
		OutputPath:          outputPath,
		Width:               info.Width,
		Height:              info.Height,
		Scale:               scale,
		InputSizeBytes:      info.FileSize,
	})
	if len(report.Warnings) == 0 {
		return
	}
	for _, w := range report.Warnings {
		fmt.Println(warnStyle.Render("⚠️  " + w))
	}
	confirm := promptui.Prompt{Label: "Continue anyway", IsConfirm: true}
	if _, err := confirm.Run(); err != nil {
		fmt.Println(warnStyle.Render("Canceled."))
		os.Exit(130)
	}
}

// defaultOutputPath suggests a sibling file named after the source.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	if ext == "" {
		ext = ".mp4"
	}
	return base + "_upscaled" + ext
}

// outputArgs adds container specific flags.
func outputArgs(outputPath string) []string {
	if strings.EqualFold(filepath.Ext(outputPath), ".mp4") {
		// Put the index up front so partial downloads start playing.
		return []string{"-movflags", "+faststart"}
	}
	return nil
}

// exitOnPromptErr ends the program when the user backs out of a prompt.
func exitOnPromptErr(err error) {
	if err == nil {
		return
	}
	if err == promptui.ErrInterrupt || err == promptui.ErrEOF {
		fmt.Println(warnStyle.Render("Canceled."))
		os.Exit(130)
	}
	fmt.Println(errorStyle.Render(fmt.Sprintf("❌ %v", err)))
	os.Exit(1)
}

// newLogger builds the process logger. Verbosity comes from the
// UPSCALEPIPE_LOG environment variable and defaults to warn so log lines
// do not fight the progress bar.
func newLogger() hclog.Logger {
	level := hclog.Warn
	if env := os.Getenv("UPSCALEPIPE_LOG"); env != "" {
		if parsed := hclog.LevelFromString(env); parsed != hclog.NoLevel {
			level = parsed
		}
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "upscalepipe",
		Level:  level,
		Output: os.Stderr,
	})
}
