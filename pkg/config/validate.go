package config

import (
	"fmt"
	"strings"
)

// Validate returns configuration problems found in cfg.
// It does not mutate cfg.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error

	if cfg.VK.AccessToken == "" {
		errs = append(errs, fmt.Errorf("vk.access_token is required"))
	}
	if cfg.VK.APIVersion == "" {
		errs = append(errs, fmt.Errorf("vk.api_version is required"))
	}
	if cfg.VK.GroupID <= 0 {
		errs = append(errs, fmt.Errorf("vk.group_id must be > 0"))
	}
	if cfg.VK.SecretKey == "" {
		errs = append(errs, fmt.Errorf("vk.secret_key is required"))
	}
	if cfg.VK.Confirmation == "" {
		errs = append(errs, fmt.Errorf("vk.confirmation is required"))
	}
	if cfg.VK.APIBase == "" {
		errs = append(errs, fmt.Errorf("vk.api_base is required"))
	}
	if cfg.VK.SendRatePerSec <= 0 {
		errs = append(errs, fmt.Errorf("vk.send_rate_per_sec must be > 0"))
	}
	for i, value := range cfg.VK.AllowFrom {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("vk.allow_from[%d] must not be empty", i))
		}
	}

	if cfg.Gateway.Port <= 0 || cfg.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port must be in 1..65535"))
	}
	if !strings.HasPrefix(cfg.Gateway.CallbackPath, "/") {
		errs = append(errs, fmt.Errorf("gateway.callback_path must start with /"))
	}

	if cfg.Logging.Enabled {
		if cfg.Logging.Dir == "" {
			errs = append(errs, fmt.Errorf("logging.dir is required when logging.enabled=true"))
		}
		if cfg.Logging.Filename == "" {
			errs = append(errs, fmt.Errorf("logging.filename is required when logging.enabled=true"))
		}
		if cfg.Logging.MaxSizeMB <= 0 {
			errs = append(errs, fmt.Errorf("logging.max_size_mb must be > 0"))
		}
	}

	return errs
}
