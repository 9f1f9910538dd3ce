package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers veto-specific validation rules. Must be
// called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("b64key", validateBase64Key); err != nil {
		return fmt.Errorf("failed to register b64key validator: %w", err)
	}
	return nil
}

// validateBase64Key checks that a field decodes as standard base64. It is
// registered as the "b64key" tag; no Config field carries that tag, and
// signing public keys are checked by validateSigningKeys instead.
func validateBase64Key(fl validator.FieldLevel) bool {
	_, err := base64.StdEncoding.DecodeString(fl.Field().String())
	return err == nil
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateCacheWindow(); err != nil {
		return err
	}
	if err := c.validateSigningKeys(); err != nil {
		return err
	}
	if err := c.validateSyncCredentials(); err != nil {
		return err
	}

	return nil
}

// validateCacheWindow ensures fresh <= max, matching the cache's
// stale-while-revalidate two-cutoff model (C8).
func (c *Config) validateCacheWindow() error {
	if c.Cache.MaxMs < c.Cache.FreshMs {
		return fmt.Errorf("cache: max_ms (%d) must be >= fresh_ms (%d)", c.Cache.MaxMs, c.Cache.FreshMs)
	}
	return nil
}

// validateSigningKeys ensures every configured public key decodes, and that
// enabling verification without any trusted key is rejected rather than
// silently accepting every bundle.
func (c *Config) validateSigningKeys() error {
	if !c.Signing.Enabled {
		return nil
	}
	if len(c.Signing.PublicKeys) == 0 {
		return errors.New("signing: enabled but no public_keys configured")
	}
	for id, key := range c.Signing.PublicKeys {
		if _, err := base64.StdEncoding.DecodeString(key); err != nil {
			return fmt.Errorf("signing.public_keys[%s]: not valid base64: %w", id, err)
		}
	}
	return nil
}

// validateSyncCredentials ensures an API key isn't configured without a
// sync URL to send it to (a likely typo, not a valid partial config).
func (c *Config) validateSyncCredentials() error {
	if c.Sync.SyncAPIKey != "" && c.Sync.PolicySyncURL == "" {
		return errors.New("sync: sync_api_key set without policy_sync_url")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors into
// actionable, field-qualified messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "b64key":
		return fmt.Sprintf("%s must be valid base64", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
