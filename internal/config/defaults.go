package config

const (
	defaultDataDir                = "~/.local/share/scribe"
	defaultLogDir                 = "~/.local/share/scribe/logs"
	defaultUploadDir              = "~/.local/share/scribe/uploads"
	defaultAPIBind                = "127.0.0.1:8000"
	defaultModel                  = "large-v3"
	defaultVADMethod              = "silero"
	defaultTaskPauseMillis        = 500
	defaultProgressIntervalMillis = 2000
	defaultProgressCap            = 95
	defaultRealtimeFactor         = 0.5
	defaultMaxFiles               = 5
	defaultMaxFileBytes           = 1 << 30
	defaultNtfyTimeoutSeconds     = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

var (
	defaultProgressFixedSteps = []int{10, 50, 70}
	defaultAllowedExtensions  = []string{".mp3", ".wav", ".m4a", ".mp4", ".aac", ".ogg", ".webm", ".ts", ".mov"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			UploadDir: defaultUploadDir,
			APIBind:   defaultAPIBind,
		},
		Transcription: Transcription{
			Model:     defaultModel,
			VADMethod: defaultVADMethod,
		},
		Workflow: Workflow{
			TaskPauseMillis:        defaultTaskPauseMillis,
			ProgressIntervalMillis: defaultProgressIntervalMillis,
			ProgressCap:            defaultProgressCap,
			ProgressFixedSteps:     append([]int(nil), defaultProgressFixedSteps...),
			RealtimeFactor:         defaultRealtimeFactor,
			ResetOnStart:           true,
		},
		Upload: Upload{
			MaxFiles:          defaultMaxFiles,
			MaxFileBytes:      defaultMaxFileBytes,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			NotifyOnSuccess:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
