// Package apierr defines the typed error taxonomy returned by the secrets
// API, serialized as the JSON "__type"/"message" shape the protocol expects
// rather than the XML error documents an S3-style service would return.
package apierr

import "fmt"

// APIError represents a single API-level error: a machine-readable type,
// a human-readable message, and the HTTP status to respond with.
type APIError struct {
	// Type is the error's wire identifier (e.g. "ResourceNotFoundException").
	Type string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code to return.
	HTTPStatus int
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Type, e.HTTPStatus, e.Message)
}

// WithMessage returns a copy of the APIError with the message replaced.
func (e *APIError) WithMessage(format string, args ...any) *APIError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Pre-defined API errors for common conditions.
var (
	// ErrResourceNotFound is returned when a named secret or version does not exist.
	ErrResourceNotFound = &APIError{
		Type:       "ResourceNotFoundException",
		Message:    "Secrets Manager can't find the specified secret.",
		HTTPStatus: 400,
	}

	// ErrResourceExists is returned when creating a secret whose name is already in use.
	ErrResourceExists = &APIError{
		Type:       "ResourceExistsException",
		Message:    "The operation failed because the secret already exists.",
		HTTPStatus: 400,
	}

	// ErrInvalidRequest is returned when the request makes sense syntactically
	// but violates a state invariant (e.g. deleting an already-scheduled-for-deletion secret).
	ErrInvalidRequest = &APIError{
		Type:       "InvalidRequestException",
		Message:    "A parameter value is not valid for the current state of the resource.",
		HTTPStatus: 400,
	}

	// ErrInvalidParameter is returned when a parameter value fails validation
	// (bad length, bad characters, mutually exclusive fields both set, etc).
	ErrInvalidParameter = &APIError{
		Type:       "InvalidParameterException",
		Message:    "You provided an invalid value for a parameter.",
		HTTPStatus: 400,
	}

	// ErrValidation is returned when a required field is missing or malformed
	// before any business-logic check runs.
	ErrValidation = &APIError{
		Type:       "ValidationException",
		Message:    "One or more parameters failed validation.",
		HTTPStatus: 400,
	}

	// ErrSerialization is returned when the request body is not valid JSON.
	ErrSerialization = &APIError{
		Type:       "SerializationException",
		Message:    "The request body could not be parsed.",
		HTTPStatus: 400,
	}

	// ErrUnknownOperation is returned when X-Amz-Target names an action the
	// server does not implement.
	ErrUnknownOperation = &APIError{
		Type:       "UnknownOperationException",
		Message:    "The requested operation is not recognized.",
		HTTPStatus: 400,
	}

	// ErrMissingAuthenticationToken is returned when no SigV4 Authorization
	// header or signed query parameters are present at all.
	ErrMissingAuthenticationToken = &APIError{
		Type:       "MissingAuthenticationTokenException",
		Message:    "Request is missing Authentication Token.",
		HTTPStatus: 403,
	}

	// ErrIncompleteSignature is returned when the Authorization header is
	// present but malformed (missing a required component).
	ErrIncompleteSignature = &APIError{
		Type:       "IncompleteSignatureException",
		Message:    "Authorization header requires more components.",
		HTTPStatus: 400,
	}

	// ErrInvalidClientTokenId is returned when the access key ID in the
	// request does not match the configured principal.
	ErrInvalidClientTokenId = &APIError{
		Type:       "InvalidClientTokenIdException",
		Message:    "The security token included in the request is invalid.",
		HTTPStatus: 403,
	}

	// ErrSignatureDoesNotMatch is returned when the computed signature does
	// not match the one supplied by the caller.
	ErrSignatureDoesNotMatch = &APIError{
		Type:       "SignatureDoesNotMatchException",
		Message:    "The request signature we calculated does not match the signature you provided.",
		HTTPStatus: 403,
	}

	// ErrExpiredToken is returned when the request timestamp falls outside
	// the configured clock-skew tolerance.
	ErrExpiredToken = &APIError{
		Type:       "ExpiredTokenException",
		Message:    "The security token included in the request is expired.",
		HTTPStatus: 400,
	}

	// ErrInvalidNextToken is returned when a pagination token cannot be decoded.
	ErrInvalidNextToken = &APIError{
		Type:       "InvalidNextTokenException",
		Message:    "The NextToken value is not valid.",
		HTTPStatus: 400,
	}

	// ErrInternalFailure is returned for unexpected internal errors.
	ErrInternalFailure = &APIError{
		Type:       "InternalFailure",
		Message:    "An internal error occurred.",
		HTTPStatus: 500,
	}
)
