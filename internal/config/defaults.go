package config

const (
	defaultOutputDir         = "~/tonies"
	defaultTempDir           = "~/.tonietool/temp"
	defaultLogDir            = "~/.tonietool/logs"
	defaultDatabasePath      = "~/.tonietool/queue.db"
	defaultBitrate           = 96
	defaultConnectionTimeout = 10
	defaultReadTimeout       = 300
	defaultMaxRetries        = 3
	defaultRetryDelay        = 5
	defaultWorkers           = 4
	defaultQueuePollInterval = 2
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNameTemplate      = "{title}"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			TempDir:      defaultTempDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Encoding: Encoding{
			Bitrate: defaultBitrate,
		},
		Naming: Naming{
			Template: defaultNameTemplate,
		},
		TeddyCloud: TeddyCloud{
			ConnectionTimeout: defaultConnectionTimeout,
			ReadTimeout:       defaultReadTimeout,
			MaxRetries:        defaultMaxRetries,
			RetryDelay:        defaultRetryDelay,
		},
		Workflow: Workflow{
			Workers:           defaultWorkers,
			QueuePollInterval: defaultQueuePollInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
