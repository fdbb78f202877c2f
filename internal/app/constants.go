package app

const (
	Name           = "rcp2bridge"
	SourceURL      = "https://git.skobk.in/skobkin/rcp2bridge"
	ConfigFilename = "config.json"
	EnvFilename    = ".env"
	DBFilename     = "history.db"
	LogFilename    = "rcp2bridge.log"
	HistoryLimit   = 100
)
