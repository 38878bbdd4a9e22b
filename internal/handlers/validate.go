package handlers

import (
	"regexp"

	"github.com/bleepforge/secretsmanager/internal/apierr"
)

// secretNameRegex matches the wire protocol's legal secret name alphabet.
var secretNameRegex = regexp.MustCompile(`^[A-Za-z0-9/_+=.@-]+$`)

func validateSecretName(name string) *apierr.APIError {
	if name == "" {
		return apierr.ErrValidation.WithMessage("Name is required")
	}
	if len(name) > 512 {
		return apierr.ErrValidation.WithMessage("Name must be 512 characters or fewer")
	}
	if !secretNameRegex.MatchString(name) {
		return apierr.ErrValidation.WithMessage("Name contains invalid characters")
	}
	return nil
}

func validateDescription(desc string) *apierr.APIError {
	if len(desc) > 2048 {
		return apierr.ErrInvalidParameter.WithMessage("Description must be 2048 characters or fewer")
	}
	return nil
}

func validateTags(tags []wireTag) *apierr.APIError {
	if len(tags) > 50 {
		return apierr.ErrInvalidParameter.WithMessage("a secret may carry at most 50 tags")
	}
	for _, t := range tags {
		if t.Key == "" || len(t.Key) > 128 {
			return apierr.ErrInvalidParameter.WithMessage("tag keys must be 1-128 characters")
		}
		if len(t.Value) > 256 {
			return apierr.ErrInvalidParameter.WithMessage("tag values must be 256 characters or fewer")
		}
	}
	return nil
}

func validateRecoveryWindow(days *int64) *apierr.APIError {
	if days == nil {
		return nil
	}
	if *days < 7 || *days > 30 {
		return apierr.ErrInvalidParameter.WithMessage("RecoveryWindowInDays must be between 7 and 30")
	}
	return nil
}

// exactlyOnePayload reports whether exactly one of a string-valued and
// binary-valued secret payload was supplied, as invariant 2 of the data
// model (secret_string XOR secret_binary) requires whenever a value is given
// at all. Both absent is legal (no value supplied).
func exactlyOnePayload(secretString *string, secretBinary []byte) *apierr.APIError {
	if secretString != nil && len(secretBinary) > 0 {
		return apierr.ErrInvalidParameter.WithMessage("SecretString and SecretBinary are mutually exclusive")
	}
	return nil
}
