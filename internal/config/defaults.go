package config

const (
	defaultDataDir          = "~/.local/share/easel"
	defaultBlobDir          = "~/.local/share/easel/blobs"
	defaultIngestDir        = "~/.local/share/easel/ingest"
	defaultLogDir           = "~/.local/share/easel/logs"
	defaultReplicateBaseURL = "https://api.replicate.com/v1"
	defaultVisionModel      = "replicate_blip"
	defaultPollSeconds      = 2
	defaultTimeoutSeconds   = 300
	defaultRatePerSecond    = 2.0
	defaultRateBurst        = 4
	defaultMaxRetries       = 3
	defaultBackoffSeconds   = 2
	defaultMaxConcurrent    = 3
	defaultBatchSize        = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultBrandName        = "siliconsentiments"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			BlobDir:   defaultBlobDir,
			IngestDir: defaultIngestDir,
			LogDir:    defaultLogDir,
		},
		Replicate: Replicate{
			BaseURL:        defaultReplicateBaseURL,
			VisionModel:    defaultVisionModel,
			PollSeconds:    defaultPollSeconds,
			TimeoutSeconds: defaultTimeoutSeconds,
			RatePerSecond:  defaultRatePerSecond,
			RateBurst:      defaultRateBurst,
		},
		Generation: Generation{
			Variations:     []string{"replicate_flux_schnell", "replicate_sdxl"},
			MaxRetries:     defaultMaxRetries,
			BackoffSeconds: defaultBackoffSeconds,
			MaxConcurrent:  defaultMaxConcurrent,
			BatchSize:      defaultBatchSize,
		},
		Brand: Brand{
			Name:      defaultBrandName,
			BaseStyle: "High-tech digital art, cyberpunk aesthetic, clean futuristic design",
			Themes: []string{
				"neural network consciousness visualization",
				"cybernetic organism architecture",
				"quantum computing interface elements",
				"holographic data visualization networks",
			},
			NegativeTerms: []string{"text", "watermark", "low quality"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
