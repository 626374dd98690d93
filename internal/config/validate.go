package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateReplicate(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateBrand(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateReplicate() error {
	if c.Replicate.APIToken == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/easel/config.toml"
		}
		return fmt.Errorf("replicate.api_token is required. Set REPLICATE_API_TOKEN env var or edit %s (create with 'easel config init')", defaultPath)
	}
	if !strings.HasPrefix(c.Replicate.BaseURL, "http") {
		return fmt.Errorf("replicate.base_url must be an http(s) URL, got %q", c.Replicate.BaseURL)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if len(c.Generation.Variations) == 0 {
		return errors.New("generation.variations must list at least one variation key")
	}
	seen := make(map[string]struct{}, len(c.Generation.Variations))
	for _, v := range c.Generation.Variations {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("generation.variations contains duplicate entry %q", v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func (c *Config) validateBrand() error {
	if c.Brand.BaseStyle == "" {
		return errors.New("brand.base_style must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
