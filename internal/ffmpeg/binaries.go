package ffmpeg

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	bundleVersion = "6.1"
	bundleBaseURL = "https://github.com/ffbinaries/ffbinaries-prebuilt/releases/download"
)

// resolved executable locations
type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

// Options tells the Locator where to look. Explicit paths win, then PATH,
// then a bundle cached under CacheDir (downloaded when AutoDownload is set).
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	CacheDir     string
	AutoDownload bool
}

// Locator resolves the ffmpeg/ffprobe pair once and caches the answer.
type Locator struct {
	opts Options

	once  sync.Once
	paths BinaryPaths
	err   error

	lookPath func(string) (string, error)
	download func(url string) (io.ReadCloser, error)
}

func NewLocator(opts Options) *Locator {
	return &Locator{
		opts:     opts,
		lookPath: exec.LookPath,
		download: httpDownload,
	}
}

func (l *Locator) Paths() (BinaryPaths, error) {
	l.once.Do(func() {
		l.paths, l.err = l.resolve()
	})
	return l.paths, l.err
}

func (l *Locator) FFmpeg() (string, error) {
	paths, err := l.Paths()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func (l *Locator) FFprobe() (string, error) {
	paths, err := l.Paths()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

func (l *Locator) resolve() (BinaryPaths, error) {
	paths := BinaryPaths{FFmpeg: l.opts.FFmpegPath, FFprobe: l.opts.FFprobePath}

	if paths.FFmpeg == "" {
		if found, err := l.lookPath("ffmpeg"); err == nil {
			paths.FFmpeg = found
		}
	}
	if paths.FFprobe == "" {
		if found, err := l.lookPath("ffprobe"); err == nil {
			paths.FFprobe = found
		}
	}
	if paths.FFmpeg != "" && paths.FFprobe != "" {
		return paths, nil
	}

	if l.opts.CacheDir == "" {
		return BinaryPaths{}, errors.New("ffmpeg and ffprobe not found in PATH and no cache directory configured")
	}

	installDir := filepath.Join(l.opts.CacheDir, "ffmpeg", bundleVersion, runtime.GOOS, runtime.GOARCH)
	cached := BinaryPaths{
		FFmpeg:  filepath.Join(installDir, "ffmpeg"+executableSuffix()),
		FFprobe: filepath.Join(installDir, "ffprobe"+executableSuffix()),
	}
	if fileExists(cached.FFmpeg) && fileExists(cached.FFprobe) {
		return fillMissing(paths, cached), nil
	}

	if !l.opts.AutoDownload {
		return BinaryPaths{}, errors.New("ffmpeg and ffprobe not found: install them, set [ffmpeg] paths, or enable auto_download")
	}

	if err := l.install(installDir); err != nil {
		return BinaryPaths{}, err
	}
	if !fileExists(cached.FFmpeg) || !fileExists(cached.FFprobe) {
		return BinaryPaths{}, errors.New("ffmpeg binaries not found after extraction")
	}
	return fillMissing(paths, cached), nil
}

func (l *Locator) install(installDir string) error {
	asset, err := assetForPlatform(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return fmt.Errorf("create ffmpeg cache dir: %w", err)
	}

	url := fmt.Sprintf("%s/v%s/%s", bundleBaseURL, bundleVersion, asset)
	body, err := l.download(url)
	if err != nil {
		return fmt.Errorf("download ffmpeg bundle: %w", err)
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp("", "captionator-ffmpeg-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	archivePath := tmp.Name()
	defer func() { _ = os.Remove(archivePath) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	if err := extractArchive(archivePath, installDir); err != nil {
		return fmt.Errorf("extract %s: %w", asset, err)
	}
	return nil
}

func fillMissing(paths, fallback BinaryPaths) BinaryPaths {
	if paths.FFmpeg == "" {
		paths.FFmpeg = fallback.FFmpeg
	}
	if paths.FFprobe == "" {
		paths.FFprobe = fallback.FFprobe
	}
	return paths
}

func httpDownload(url string) (io.ReadCloser, error) {
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

func assetForPlatform(goos, goarch string) (string, error) {
	switch {
	case goos == "linux" && goarch == "amd64":
		return "ffmpeg-" + bundleVersion + "-linux-64.zip", nil
	case goos == "linux" && goarch == "arm64":
		return "ffmpeg-" + bundleVersion + "-linux-arm-64.zip", nil
	case goos == "darwin" && goarch == "amd64":
		return "ffmpeg-" + bundleVersion + "-macos-64.zip", nil
	case goos == "windows" && goarch == "amd64":
		return "ffmpeg-" + bundleVersion + "-win-64.zip", nil
	default:
		return "", fmt.Errorf("unsupported platform for bundled ffmpeg: %s/%s", goos, goarch)
	}
}

// extracts ffmpeg and ffprobe from a ffbinaries zip (one binary per archive
// entry, any directory layout)
func extractArchive(archivePath, installDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open ffmpeg archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	found := map[string]bool{}
	for _, file := range zr.File {
		name := strings.TrimSuffix(strings.ToLower(filepath.Base(file.Name)), ".exe")
		if name != "ffmpeg" && name != "ffprobe" {
			continue
		}
		dest := filepath.Join(installDir, name+executableSuffix())
		if err := extractZipFile(file, dest); err != nil {
			return err
		}
		found[name] = true
	}

	if !found["ffmpeg"] || !found["ffprobe"] {
		return errors.New("ffmpeg archive missing required binaries")
	}
	return nil
}

func extractZipFile(file *zip.File, dest string) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open ffmpeg archive entry: %w", err)
	}
	defer func() { _ = reader.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return fmt.Errorf("create ffmpeg binary: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("write ffmpeg binary: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
