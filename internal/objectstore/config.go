package objectstore

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultRegion = "us-east-1"
	DefaultPrefix = "builds"
)

type Config struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `yaml:"-" mapstructure:"secret_key"`
	Region    string `yaml:"region,omitempty" mapstructure:"region"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	Bucket    string `yaml:"bucket,omitempty" mapstructure:"bucket"`
	Prefix    string `yaml:"prefix,omitempty" mapstructure:"prefix"`
}

// Enabled reports whether an endpoint was configured
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.Contains(c.Prefix, "..") {
		return fmt.Errorf("prefix must not contain '..': %q", c.Prefix)
	}
	return nil
}
