package filefraudreport

import (
	"time"

	"hajj-assistant/internal/common/camunda"
	"hajj-assistant/internal/common/logger"
)

type Config struct {
	Timeout time.Duration

	// Jobs reports job outcomes. Left nil, the handler reports without
	// otel instruments and with the default send retry.
	Jobs *camunda.Jobs
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 20 * time.Second,
	}
}

func jobsFor(config *Config, log logger.Logger) *camunda.Jobs {
	if config.Jobs != nil {
		return config.Jobs
	}
	return camunda.NewJobs(TaskType, nil, nil, log)
}
