package config

type Config interface {
	EnvConfig
	ClientConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type ClientConfig interface {
	GetBaseURL() string
	GetHTTPTimeout() string
	GetDataFolder() string
	GetStoreSecret() string
}

type mainConfig struct {
	EnvVars
	ClientVars
}

func New() Config {
	return mainConfig{}
}
