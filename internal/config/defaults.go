package config

const (
	defaultModelDir        = "~/.local/share/captionator/models"
	defaultTempDir         = "~/.cache/captionator/tmp"
	defaultOutputDir       = "~/.local/share/captionator/output"
	defaultUploadDir       = "~/.local/share/captionator/uploads"
	defaultDataDir         = "~/.local/share/captionator"
	defaultProvider        = "gemini"
	defaultChunkMinutes    = 1
	defaultConcurrency     = 3
	defaultMaxCharsPerLine = 40
	defaultFormat          = "srt"
	defaultFontName        = "Arial"
	defaultFontSize        = 24
	defaultPrimaryColour   = "&H00FFFFFF"
	defaultOutlineColour   = "&H00000000"
	defaultOutline         = 2
	defaultPosition        = "bottom"
	defaultMarginV         = 20
	defaultBind            = "127.0.0.1:5000"
	defaultMaxUploadMB     = 512
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ModelDir:  defaultModelDir,
			TempDir:   defaultTempDir,
			OutputDir: defaultOutputDir,
			UploadDir: defaultUploadDir,
			DataDir:   defaultDataDir,
		},
		FFmpeg: FFmpeg{
			AutoDownload: true,
		},
		Transcription: Transcription{
			Provider:     defaultProvider,
			ChunkMinutes: defaultChunkMinutes,
			Concurrency:  defaultConcurrency,
		},
		Captions: Captions{
			MaxCharsPerLine: defaultMaxCharsPerLine,
			Format:          defaultFormat,
		},
		Render: Render{
			FontName:      defaultFontName,
			FontSize:      defaultFontSize,
			PrimaryColour: defaultPrimaryColour,
			OutlineColour: defaultOutlineColour,
			Outline:       defaultOutline,
			Position:      defaultPosition,
			MarginV:       defaultMarginV,
		},
		Server: Server{
			Bind:        defaultBind,
			CORSOrigins: []string{"*"},
			MaxUploadMB: defaultMaxUploadMB,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
