// internal/ui/ui.go
package ui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"

	"upscalepipe/internal/probe"
	"upscalepipe/internal/session"
)

var (
	infoStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7C3AED")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(1, 2).
			MarginTop(1)

	failureStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444")).
			Padding(1, 2).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#111827"))
)

// DisplayVideoInfo prints the probed source file as a bordered panel.
func DisplayVideoInfo(info *probe.Result) {
	content := fmt.Sprintf(
		"%s %s\n"+
			"%s %s\n"+
			"%s %dx%d\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s\n"+
			"%s %s",
		labelStyle.Render("📁 File:"), valueStyle.Render(filepath.Base(info.Path)),
		labelStyle.Render("📊 Size:"), valueStyle.Render(FormatFileSize(info.FileSize)),
		labelStyle.Render("📐 Dimensions:"), info.Width, info.Height,
		labelStyle.Render("🎬 Format:"), valueStyle.Render(info.Format),
		labelStyle.Render("🎞️  Codec:"), valueStyle.Render(info.VideoCodec),
		labelStyle.Render("🎯 Frame rate:"), valueStyle.Render(FormatFrameRate(info.FrameRate)),
		labelStyle.Render("⚡ Bitrate:"), valueStyle.Render(formatBitrate(info.Bitrate)),
		labelStyle.Render("⏱️  Duration:"), valueStyle.Render(FormatDuration(info.Duration)),
		labelStyle.Render("🔊 Streams:"), valueStyle.Render(formatStreams(info)),
	)

	fmt.Println(infoStyle.Render(content))
}

// DisplayRunSummary prints the outcome panel for a finished run.
func DisplayRunSummary(res *session.Result) {
	if res == nil {
		return
	}
	switch {
	case res.Success:
		content := fmt.Sprintf(
			"%s\n"+
				"%s %s\n"+
				"%s %s\n"+
				"%s %d",
			labelStyle.Render("✅ Processing complete"),
			labelStyle.Render("📼 Output:"), valueStyle.Render(res.OutputPath),
			labelStyle.Render("⏱️  Elapsed:"), valueStyle.Render(FormatElapsed(res.Elapsed)),
			labelStyle.Render("🖼️  Previews:"), res.PreviewFrames,
		)
		fmt.Println(summaryStyle.Render(content))
	case res.Canceled:
		content := fmt.Sprintf(
			"%s\n"+
				"%s %s",
			labelStyle.Render("⚠️  Processing stopped before completion"),
			labelStyle.Render("⏱️  Elapsed:"), valueStyle.Render(FormatElapsed(res.Elapsed)),
		)
		fmt.Println(failureStyle.Render(content))
	default:
		content := fmt.Sprintf(
			"%s\n"+
				"%s",
			labelStyle.Render("❌ Processing failed"),
			valueStyle.Render(res.ErrorMessage),
		)
		fmt.Println(failureStyle.Render(content))
	}
}

// FormatFileSize converts bytes to human-readable format
func FormatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration converts seconds to MM:SS, or HH:MM:SS from an hour up
func FormatDuration(seconds float64) string {
	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	remainingSeconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, remainingSeconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, remainingSeconds)
}

// FormatElapsed renders a wall-clock duration the same way as FormatDuration.
func FormatElapsed(d time.Duration) string {
	return FormatDuration(d.Seconds())
}

// FormatFrameRate renders fps with up to two decimals, trimming a whole
// number to its integer form.
func FormatFrameRate(fps float64) string {
	if fps <= 0 {
		return "Unknown"
	}
	if fps == float64(int(fps)) {
		return fmt.Sprintf("%d fps", int(fps))
	}
	return fmt.Sprintf("%.2f fps", fps)
}

func formatBitrate(bitrate int64) string {
	if bitrate == 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%.1f kbps", float64(bitrate)/1000)
}

func formatStreams(info *probe.Result) string {
	out := "video"
	if info.HasAudio {
		out += " + audio"
	}
	if info.HasSubtitles {
		out += " + subtitles"
	}
	return out
}
