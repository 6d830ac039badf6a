package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nopcorn/rascalrunner/errors"
)

var validate = validator.New()

// Validate checks structural constraints on the configuration. Target and
// workflow file are validated separately because they usually arrive as
// flags after the file is loaded.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return errors.ConfigInvalid(
				fmt.Sprintf("field '%s' fails constraint '%s'", first.Namespace(), first.Tag()))
		}
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration validation failed")
	}

	if c.Polling.PollInterval.Std() <= 0 {
		return errors.ConfigInvalid("polling.poll_interval must be positive")
	}
	if c.Polling.DiscoveryTimeout.Std() < c.Polling.PollInterval.Std() {
		return errors.ConfigInvalid("polling.discovery_timeout must be at least one poll_interval")
	}
	if c.Client.InitialBackoff.Std() <= 0 || c.Client.MaxBackoff.Std() < c.Client.InitialBackoff.Std() {
		return errors.ConfigInvalid("client backoff bounds are inverted")
	}

	return nil
}
