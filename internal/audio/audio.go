package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	ffmpegbin "github.com/mgpai22/captionator/internal/ffmpeg"
)

// audio chunk info
type ChunkInfo struct {
	Path      string
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
}

// settings for audio compression
type CompressionOptions struct {
	Format     string // mp3, aac, wav or flac
	SampleRate int
	Channels   int
	Bitrate    string // e.g. "64k"
}

// defaults for transcription
func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

// Processor wraps the ffmpeg/ffprobe pair for audio work.
type Processor struct {
	bins *ffmpegbin.Locator
}

func NewProcessor(bins *ffmpegbin.Locator) *Processor {
	return &Processor{bins: bins}
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration reported by ffprobe.
func (p *Processor) Duration(ctx context.Context, filePath string) (time.Duration, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return 0, fmt.Errorf("file not found: %s", filePath)
	}

	ffprobePath, err := p.bins.FFprobe()
	if err != nil {
		return 0, err
	}

	out, err := ffmpegbin.Exec(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeDuration(out)
}

func parseProbeDuration(data []byte) (time.Duration, error) {
	var probe ffprobeFormat
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", probe.Format.Duration)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// Compress re-encodes the audio track of inputPath (audio or video) to a small
// mono file suitable for upload to a transcription API.
func (p *Processor) Compress(
	ctx context.Context,
	inputPath, outputPath string,
	opts CompressionOptions,
) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := p.bins.FFmpeg()
	if err != nil {
		return err
	}

	stream := ffmpeg.Input(inputPath).
		Output(outputPath, compressionArgs(opts)).
		OverWriteOutput()

	if err := ffmpegbin.Run(ctx, ffmpegPath, stream); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	return nil
}

func compressionArgs(opts CompressionOptions) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"vn": "",
	}
	if opts.SampleRate > 0 {
		kwargs["ar"] = opts.SampleRate
	}
	if opts.Channels > 0 {
		kwargs["ac"] = opts.Channels
	}

	switch opts.Format {
	case "aac":
		kwargs["acodec"] = "aac"
	case "flac":
		kwargs["acodec"] = "flac"
	case "wav":
		kwargs["acodec"] = "pcm_s16le"
	default:
		kwargs["acodec"] = "libmp3lame"
	}

	if opts.Bitrate != "" && (opts.Format == "" || opts.Format == "mp3" || opts.Format == "aac") {
		kwargs["b:a"] = opts.Bitrate
	}
	return kwargs
}

// single chunk to be cut
type chunkJob struct {
	index int
	start time.Duration
	end   time.Duration
	path  string
}

// splits [0,total) into consecutive windows of chunkDuration
func planChunks(total, chunkDuration time.Duration, outputDir, baseName, ext string) []chunkJob {
	var jobs []chunkJob
	for i := 0; ; i++ {
		start := time.Duration(i) * chunkDuration
		if start >= total {
			break
		}
		end := start + chunkDuration
		if end > total {
			end = total
		}
		jobs = append(jobs, chunkJob{
			index: i,
			start: start,
			end:   end,
			path:  filepath.Join(outputDir, fmt.Sprintf("%s_chunk_%03d%s", baseName, i, ext)),
		})
	}
	return jobs
}

// Chunk splits an audio file into pieces of chunkDuration using up to
// concurrency ffmpeg processes. Chunks are returned in playback order.
func (p *Processor) Chunk(
	ctx context.Context,
	audioPath string,
	chunkDuration time.Duration,
	outputDir string,
	concurrency int,
) ([]ChunkInfo, error) {
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkDuration)
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	total, err := p.Duration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := p.bins.FFmpeg()
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(audioPath)
	baseName := strings.TrimSuffix(filepath.Base(audioPath), ext)
	jobs := planChunks(total, chunkDuration, outputDir, baseName, ext)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		chunks   = make([]ChunkInfo, 0, len(jobs))
		firstErr error
		wg       sync.WaitGroup
	)

	sem := make(chan struct{}, concurrency)

	for _, job := range jobs {
		wg.Add(1)
		go func(j chunkJob) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			stream := ffmpeg.Input(audioPath, ffmpeg.KwArgs{"ss": j.start.Seconds()}).
				Output(j.path, ffmpeg.KwArgs{
					"t": (j.end - j.start).Seconds(),
					"c": "copy",
				}).
				OverWriteOutput()

			err := ffmpegbin.Run(ctx, ffmpegPath, stream)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to create chunk %d: %w", j.index, err)
					cancel()
				}
				return
			}

			chunks = append(chunks, ChunkInfo{
				Path:      j.path,
				Index:     j.index,
				StartTime: j.start,
				EndTime:   j.end,
			})
		}(job)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})

	return chunks, nil
}

var videoExts = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".m4v": true, ".mpeg": true, ".mpg": true,
	".3gp": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".aac": true, ".flac": true, ".ogg": true,
	".m4a": true, ".wma": true, ".aiff": true,
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
}

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	return audioExts[strings.ToLower(filepath.Ext(path))]
}

func IsImageFile(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// checks if the file is either audio or video
func IsMediaFile(path string) bool {
	return IsAudioFile(path) || IsVideoFile(path)
}

// removes all chunk files
func CleanupChunks(chunks []ChunkInfo) error {
	var lastErr error
	for _, chunk := range chunks {
		if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}
