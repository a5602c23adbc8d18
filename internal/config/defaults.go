package config

const (
	defaultDeliveryRoot       = "/proj"
	defaultStagingDir         = "~/.local/share/shuttle/staging"
	defaultLogDir             = "~/.local/share/shuttle/logs"
	defaultShotgridTimeout    = 30
	defaultDeadlinePlugin     = "OpenPype"
	defaultDeadlineGroup      = "nuke-cpu-epyc"
	defaultDeadlinePriority   = 50
	defaultDeadlineChunkSize  = 1
	defaultOiiotoolBinary     = "oiiotool"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultSequenceTemplate   = "{yyyy}{mm}{dd}/{asset}/{subset}/v{version:0>3}/{project[code]}_{asset}_{subset}_v{version:0>3}.{frame}.{representation}"
	defaultSingleFileTemplate = "{yyyy}{mm}{dd}/{asset}/{subset}/v{version:0>3}/{project[code]}_{asset}_{subset}_v{version:0>3}.{representation}"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DeliveryRoot: defaultDeliveryRoot,
			StagingDir:   defaultStagingDir,
			LogDir:       defaultLogDir,
		},
		Shotgrid: Shotgrid{
			TimeoutSeconds: defaultShotgridTimeout,
		},
		Deadline: Deadline{
			Plugin:    defaultDeadlinePlugin,
			Group:     defaultDeadlineGroup,
			Priority:  defaultDeadlinePriority,
			ChunkSize: defaultDeadlineChunkSize,
		},
		Delivery: Delivery{
			SequenceTemplate:   defaultSequenceTemplate,
			SingleFileTemplate: defaultSingleFileTemplate,
		},
		Transcode: Transcode{
			OiiotoolBinary: defaultOiiotoolBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
