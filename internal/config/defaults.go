package config

const (
	defaultConfigPath             = "~/.config/deepshield/config.toml"
	defaultDataDir                = "~/.local/share/deepshield"
	defaultMediaDir               = "~/.local/share/deepshield/uploads"
	defaultLogDir                 = "~/.local/share/deepshield/logs"
	defaultBind                   = "127.0.0.1:3000"
	defaultMaxUploadBytes         = 100 << 20
	defaultTokenTTLHours          = 24
	defaultAnalysisWorkers        = 2
	defaultAnalysisTimeoutSeconds = 300
	defaultAnalysisPollInterval   = 5
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultExtractor              = ExtractorFFmpeg
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultMinFrames              = 10
	defaultMaxFrames              = 20
	defaultFrameWidth             = 640
	defaultFrameHeight            = 480
	defaultDetectorKind           = DetectorHTTP
	defaultDetectorEndpoint       = "http://localhost:5000/analyze"
	defaultDetectorInput          = DetectorInputVideo
	defaultNATSSubjectPrefix      = "deepshield"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Extractor strategies.
const (
	ExtractorFFmpeg = "ffmpeg"
	ExtractorHTTP   = "http"
	ExtractorNone   = "none"
)

// Detector strategies and inputs.
const (
	DetectorHTTP    = "http"
	DetectorCommand = "command"

	DetectorInputFrames = "frames"
	DetectorInputVideo  = "video"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind:           defaultBind,
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: defaultMaxUploadBytes,
		},
		Auth: Auth{
			TokenTTLHours: defaultTokenTTLHours,
		},
		Analysis: Analysis{
			Workers:           defaultAnalysisWorkers,
			TimeoutSeconds:    defaultAnalysisTimeoutSeconds,
			PollInterval:      defaultAnalysisPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			Frames: Frames{
				Extractor:     defaultExtractor,
				FFmpegBinary:  defaultFFmpegBinary,
				FFprobeBinary: defaultFFprobeBinary,
				MinFrames:     defaultMinFrames,
				MaxFrames:     defaultMaxFrames,
				Width:         defaultFrameWidth,
				Height:        defaultFrameHeight,
			},
			Detector: Detector{
				Kind:     defaultDetectorKind,
				Endpoint: defaultDetectorEndpoint,
				Input:    defaultDetectorInput,
			},
		},
		Notifications: Notifications{
			NATSSubjectPrefix: defaultNATSSubjectPrefix,
			RequestTimeout:    defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
