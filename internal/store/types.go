// Package store implements the encrypted relational store and the secret
// repository's action semantics on top of it: CRUD over secrets, versions,
// stages, and tags, with the transactional boundaries the data-model
// invariants require.
package store

import "time"

// Reserved stage labels with invariant-bearing meaning.
const (
	StageCurrent  = "AWSCURRENT"
	StagePrevious = "AWSPREVIOUS"
	StagePending  = "AWSPENDING"
)

// SecretRecord is a named secret container, independent of any particular
// version's payload.
type SecretRecord struct {
	ID                 int64
	Name               string
	ARN                string
	Description        string
	KMSKeyID           string
	CreatedAt          time.Time
	DeletedAt          *time.Time
	RecoveryWindowDays *int
	LastAccessedDate   *time.Time
	LastChangedDate    time.Time
	Tags               []TagRecord
}

// IsDeleted reports whether the secret is currently soft-deleted.
func (s *SecretRecord) IsDeleted() bool {
	return s.DeletedAt != nil
}

// SecretVersionRecord is one immutable version of a secret's payload.
type SecretVersionRecord struct {
	SecretID     int64
	VersionID    string
	SecretString *string
	SecretBinary []byte
	CreatedAt    time.Time
	Stages       []string
}

// HasStage reports whether the version currently carries the given stage.
func (v *SecretVersionRecord) HasStage(stage string) bool {
	for _, s := range v.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// SameContent reports whether two versions carry byte-identical payloads,
// used to decide CreateSecret/PutSecretValue client-request-token idempotency.
func (v *SecretVersionRecord) SameContent(secretString *string, secretBinary []byte) bool {
	if (v.SecretString == nil) != (secretString == nil) {
		return false
	}
	if v.SecretString != nil && *v.SecretString != *secretString {
		return false
	}
	if len(v.SecretBinary) != len(secretBinary) {
		return false
	}
	for i := range v.SecretBinary {
		if v.SecretBinary[i] != secretBinary[i] {
			return false
		}
	}
	return true
}

// TagRecord is a single {Key, Value} tag attached to a secret.
type TagRecord struct {
	Key   string
	Value string
}

// ListFilter is one named filter clause from the ListSecrets/BatchGetSecretValue
// filter set: the named field must prefix-match (case-insensitive) one of
// Values, or (if Negate) must prefix-match none of them.
type ListFilter struct {
	Key    string // "name", "description", "tag-key", "tag-value", "primary-region", "all"
	Values []string
	Negate bool
}

// ListSecretsOptions configures ListSecrets / BatchGetSecretValue-by-filter.
type ListSecretsOptions struct {
	Filters        []ListFilter
	IncludeDeleted bool
	MaxResults     int
	NextToken      string
	SortAscending  bool
}

// ListSecretsResult holds one page of ListSecrets results.
type ListSecretsResult struct {
	Secrets   []SecretRecord
	NextToken string
}
