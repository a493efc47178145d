package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	VK      VKConfig      `json:"vk"`
	Gateway GatewayConfig `json:"gateway"`
	Logging LoggingConfig `json:"logging"`
}

// VKConfig holds the VK Callback API credentials and webhook settings.
// SecretKey authenticates inbound callbacks; Confirmation is the literal
// string echoed back during the one-time handshake.
type VKConfig struct {
	AccessToken  string `json:"access_token" env:"VKGATE_VK_ACCESS_TOKEN"`
	SecretKey    string `json:"secret_key" env:"VKGATE_VK_SECRET_KEY"`
	GroupID      int64  `json:"group_id" env:"VKGATE_VK_GROUP_ID"`
	APIVersion   string `json:"api_version" env:"VKGATE_VK_API_VERSION"`
	Lang         string `json:"lang" env:"VKGATE_VK_LANG"`
	Confirmation string `json:"confirmation" env:"VKGATE_VK_CONFIRMATION"`
	APIBase      string `json:"api_base" env:"VKGATE_VK_API_BASE"`
	// ForwardDeny turns message_deny events into synthetic "_message_deny"
	// commands delivered to the host runtime.
	ForwardDeny bool `json:"forward_deny" env:"VKGATE_VK_FORWARD_DENY"`
	// SendRatePerSec caps outbound API calls (VK throttles community bots).
	SendRatePerSec float64  `json:"send_rate_per_sec" env:"VKGATE_VK_SEND_RATE_PER_SEC"`
	AllowFrom      []string `json:"allow_from" env:"VKGATE_VK_ALLOW_FROM"`
}

type GatewayConfig struct {
	Host         string `json:"host" env:"VKGATE_GATEWAY_HOST"`
	Port         int    `json:"port" env:"VKGATE_GATEWAY_PORT"`
	CallbackPath string `json:"callback_path" env:"VKGATE_GATEWAY_CALLBACK_PATH"`
	// Echo replies every inbound message back to its sender; useful for
	// smoke-testing a fresh deployment before a real runtime is attached.
	Echo bool `json:"echo" env:"VKGATE_GATEWAY_ECHO"`
}

type LoggingConfig struct {
	Enabled   bool   `json:"enabled" env:"VKGATE_LOGGING_ENABLED"`
	Dir       string `json:"dir" env:"VKGATE_LOGGING_DIR"`
	Filename  string `json:"filename" env:"VKGATE_LOGGING_FILENAME"`
	MaxSizeMB int    `json:"max_size_mb" env:"VKGATE_LOGGING_MAX_SIZE_MB"`
}

const DefaultAPIBase = "https://api.vk.com/method/"

func DefaultConfig() *Config {
	return &Config{
		VK: VKConfig{
			APIVersion:     "5.131",
			Lang:           "en",
			APIBase:        DefaultAPIBase,
			ForwardDeny:    false,
			SendRatePerSec: 20,
			AllowFrom:      []string{},
		},
		Gateway: GatewayConfig{
			Host:         "0.0.0.0",
			Port:         18792,
			CallbackPath: "/vk/callback",
		},
		Logging: LoggingConfig{
			Enabled:   true,
			Dir:       filepath.Join(configDir(), "logs"),
			Filename:  "vkgate.log",
			MaxSizeMB: 20,
		},
	}
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vkgate")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := unmarshalConfigStrict(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) LogFilePath() string {
	filename := c.Logging.Filename
	if filename == "" {
		filename = "vkgate.log"
	}
	return filepath.Join(c.Logging.Dir, filename)
}
