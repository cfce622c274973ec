package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level

	Account AccountConfig `mapstructure:"account"`
	Mailbox MailboxConfig `mapstructure:"mailbox"`
	Vendor  VendorConfig  `mapstructure:"vendor"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`

	PollerConfig  PollerConfig  `mapstructure:"poller"`
	TokenConfig   TokenConfig   `mapstructure:"token"`
	CommandConfig CommandConfig `mapstructure:"command"`
	BrowserConfig BrowserConfig `mapstructure:"browser"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type AccountConfig struct {
	Email    string
	Password string
	// InstallRef selects the installation when the account has several.
	// Empty means "first installation returned by the cloud".
	InstallRef string `mapstructure:"install_ref"`
}

// MailboxConfig points at the mailbox that receives the vendor's MFA codes.
type MailboxConfig struct {
	Provider           string `mapstructure:"provider"`
	Host               string
	Port               uint
	Username           string
	Password           string
	SenderFilter       string `mapstructure:"sender_filter"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	WaitTimeoutMillis  uint32 `mapstructure:"wait_timeout_millis"`
}

// VendorConfig addresses the vendor cloud. Empty values fall back to the
// production endpoints; tests point them at local servers.
type VendorConfig struct {
	APIBase  string `mapstructure:"api_base"`
	MQTTHost string `mapstructure:"mqtt_host"`
	MQTTPort int    `mapstructure:"mqtt_port"`
}

type PollerConfig struct {
	ZoneReloadIntervalMillis uint32 `mapstructure:"zone_reload_interval_millis"`
}

type TokenConfig struct {
	RefreshIntervalMillis uint32 `mapstructure:"refresh_interval_millis"`
}

type CommandConfig struct {
	ConfirmTimeoutMillis uint32 `mapstructure:"confirm_timeout_millis"`
}

// BrowserConfig bounds the browser-engine login fallback.
type BrowserConfig struct {
	Enable            bool   `mapstructure:"enable"`
	IdleTimeoutMillis uint32 `mapstructure:"idle_timeout_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
