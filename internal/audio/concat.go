package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Result is a finished concatenation on disk.
type Result struct {
	Path     string
	Duration float64 // seconds
}

// Concatenator joins ordered clips into one file with a fixed inter-clip
// gap, and produces silent stub clips for fallback content. This is the
// black-box audio operation: no mixing or loudness work happens in this
// core.
type Concatenator interface {
	Concatenate(ctx context.Context, files []string, gapSeconds float64, outPath string) (Result, error)
	Silence(ctx context.Context, seconds float64, outPath string) (Result, error)
}

// FFmpegConcatenator shells out to ffmpeg. When ffmpeg is unavailable it
// degrades to raw byte concatenation (frame-packed formats like MP3
// tolerate this) and drops the inter-clip gap, best effort.
type FFmpegConcatenator struct {
	bitrateKbps int
}

func NewConcatenator(bitrateKbps int) *FFmpegConcatenator {
	return &FFmpegConcatenator{bitrateKbps: bitrateKbps}
}

func (c *FFmpegConcatenator) Concatenate(ctx context.Context, files []string, gapSeconds float64, outPath string) (Result, error) {
	if len(files) == 0 {
		return Result{}, fmt.Errorf("no input files to concatenate")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	// Single input is a plain copy
	if len(files) == 1 {
		if err := copyFile(files[0], outPath); err != nil {
			return Result{}, err
		}
		return Result{Path: outPath, Duration: c.ProbeDuration(files[0])}, nil
	}

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Printf("⚠️ ffmpeg not found, falling back to raw byte concatenation")
		return c.rawConcat(files, outPath)
	}

	inputs := files
	if gapSeconds > 0 {
		silence, err := c.silenceClip(ctx, filepath.Dir(outPath), gapSeconds)
		if err != nil {
			log.Printf("⚠️ Could not generate gap clip, joining without gaps: %v", err)
		} else {
			defer os.Remove(silence)
			inputs = interleave(files, silence)
		}
	}

	concatFile, err := writeConcatList(filepath.Dir(outPath), inputs)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(concatFile)

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", c.bitrateKbps),
		outPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Printf("⚠️ ffmpeg concat failed (%v), falling back to raw byte concatenation", err)
		return c.rawConcat(files, outPath)
	}

	return Result{Path: outPath, Duration: c.ProbeDuration(outPath)}, nil
}

// ProbeDuration reads a file's duration via ffprobe, estimating from file
// size and the configured bitrate when ffprobe is unavailable or fails.
func (c *FFmpegConcatenator) ProbeDuration(path string) float64 {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path).Output()
	if err == nil {
		var d float64
		if _, scanErr := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &d); scanErr == nil && d > 0 {
			return d
		}
	}

	info, err := os.Stat(path)
	if err != nil || c.bitrateKbps <= 0 {
		return 0
	}
	return float64(info.Size()) / (float64(c.bitrateKbps) * 1000 / 8)
}

func (c *FFmpegConcatenator) rawConcat(files []string, outPath string) (Result, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	var total float64
	for _, f := range files {
		in, err := os.Open(f)
		if err != nil {
			return Result{}, fmt.Errorf("open input %s: %w", f, err)
		}
		if _, err := io.Copy(out, in); err != nil {
			in.Close()
			return Result{}, fmt.Errorf("append %s: %w", f, err)
		}
		in.Close()
		total += c.ProbeDuration(f)
	}
	return Result{Path: outPath, Duration: total}, nil
}

// Silence writes a silent clip of the given length to outPath. Used for
// fallback stub segments when a provider call fails. Without ffmpeg the
// clip degrades to a zero-filled span sized by the configured bitrate.
func (c *FFmpegConcatenator) Silence(ctx context.Context, seconds float64, outPath string) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	if _, err := exec.LookPath("ffmpeg"); err == nil {
		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-f", "lavfi",
			"-i", "anullsrc=r=44100:cl=stereo",
			"-t", fmt.Sprintf("%.3f", seconds),
			"-c:a", "libmp3lame",
			"-b:a", fmt.Sprintf("%dk", c.bitrateKbps),
			outPath)
		if err := cmd.Run(); err == nil {
			return Result{Path: outPath, Duration: seconds}, nil
		}
		log.Printf("⚠️ ffmpeg silence generation failed, writing zero-filled stub")
	}

	size := int64(seconds * float64(c.bitrateKbps) * 1000 / 8)
	if err := os.WriteFile(outPath, make([]byte, size), 0o644); err != nil {
		return Result{}, fmt.Errorf("write stub clip: %w", err)
	}
	return Result{Path: outPath, Duration: seconds}, nil
}

func (c *FFmpegConcatenator) silenceClip(ctx context.Context, dir string, seconds float64) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("gap_%dms.mp3", int(seconds*1000)))
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", fmt.Sprintf("%.3f", seconds),
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", c.bitrateKbps),
		path)
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return path, nil
}

func writeConcatList(dir string, files []string) (string, error) {
	var b strings.Builder
	for _, f := range files {
		// escape single quotes in filenames for ffmpeg concat format
		safe := strings.ReplaceAll(f, "'", "'\\''")
		b.WriteString(fmt.Sprintf("file '%s'\n", safe))
	}
	concatFile := filepath.Join(dir, "concat.txt")
	if err := os.WriteFile(concatFile, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("failed to write concat file: %w", err)
	}
	return concatFile, nil
}

func interleave(files []string, gap string) []string {
	out := make([]string, 0, len(files)*2-1)
	for i, f := range files {
		if i > 0 {
			out = append(out, gap)
		}
		out = append(out, f)
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}
