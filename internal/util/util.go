package util

import (
	"neasmart2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Account: config.AccountConfig{
			Email:    "user@example.com",
			Password: "hunter2",
		},
		Mailbox: config.MailboxConfig{
			Provider:           "pop3",
			Host:               "localhost",
			Port:               995,
			Username:           "user@example.com",
			PollIntervalMillis: 200,
			WaitTimeoutMillis:  5000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "neasmart2mqtt",
			HADiscoveryTopic: "homeassistant",
		},
		PollerConfig: config.PollerConfig{
			ZoneReloadIntervalMillis: 60000,
		},
		TokenConfig: config.TokenConfig{
			RefreshIntervalMillis: 300000,
		},
		CommandConfig: config.CommandConfig{
			ConfirmTimeoutMillis: 2000,
		},
		Port: 8080,
	}
}
