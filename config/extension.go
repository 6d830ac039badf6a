package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/nopcorn/rascalrunner/errors"
)

// UnmarshalExtension decodes a platform-specific settings block into out.
// Returns false when the block is absent, which callers treat as "use the
// platform's defaults".
func (c *Config) UnmarshalExtension(name string, out interface{}) (bool, error) {
	raw, ok := c.Platforms[name]
	if !ok {
		return false, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to build extension decoder")
	}

	if err := decoder.Decode(raw); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode platform settings").
			WithDetail("platform", name)
	}

	return true, nil
}
