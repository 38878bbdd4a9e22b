package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bleepforge/secretsmanager/internal/uid"
	"github.com/google/uuid"
)

// Region and AccountID shape every ARN this repository mints. They are
// configuration, not stored state: changing them does not rewrite existing
// rows, matching how a real deployment's account/region are fixed for its
// lifetime.
type ARNConfig struct {
	Partition string
	Region    string
	AccountID string
}

func (c ARNConfig) build(name, suffix string) string {
	return fmt.Sprintf("arn:%s:secretsmanager:%s:%s:secret:%s-%s",
		c.Partition, c.Region, c.AccountID, name, suffix)
}

// WithARNConfig attaches the ARN-building configuration the repository
// uses when minting new secrets. Must be called before any CreateSecret.
func (r *Repository) WithARNConfig(cfg ARNConfig) *Repository {
	r.arnConfig = cfg
	return r
}

func nowUTC() time.Time { return time.Now().UTC() }

func fmtTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// newVersionID mints a UUID-v4 version identifier, matching the wire
// protocol's expectation that VersionId looks like a UUID.
func newVersionID() string { return uuid.New().String() }

// CreateSecret creates a new secret with an initial version staged
// AWSCURRENT, or — if name already resolves to a non-deleted secret and
// clientRequestToken matches the token used to create its current version
// with identical content — returns the existing secret/version idempotently.
func (r *Repository) CreateSecret(ctx context.Context, name, description, kmsKeyID string, secretString *string, secretBinary []byte, clientRequestToken string, tags []TagRecord) (*SecretRecord, *SecretVersionRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := getSecretByNameTx(ctx, tx, name, false)
	if err != nil && err != ErrNotFound {
		return nil, nil, err
	}
	if existing != nil {
		cur, verr := getVersionByStageTx(ctx, tx, existing.ID, StageCurrent)
		if verr != nil {
			return nil, nil, verr
		}
		if cur.VersionID == clientRequestToken && cur.SameContent(secretString, secretBinary) {
			if err := tx.Commit(); err != nil {
				return nil, nil, err
			}
			return existing, cur, nil
		}
		return nil, nil, ErrAlreadyExists
	}

	suffix := uid.ARNSuffix()
	now := nowUTC()
	arn := r.arnConfig.build(name, suffix)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO secrets (name, name_lower, arn, description, description_lower, kms_key_id, created_at, last_changed_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, strings.ToLower(name), arn, description, strings.ToLower(description), kmsKeyID,
		fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, nil, fmt.Errorf("inserting secret: %w", err)
	}
	secretID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, err
	}

	versionID := clientRequestToken
	if versionID == "" {
		versionID = newVersionID()
	}
	if err := insertVersionTx(ctx, tx, secretID, versionID, secretString, secretBinary, now); err != nil {
		return nil, nil, err
	}
	if err := setStageTx(ctx, tx, secretID, versionID, StageCurrent); err != nil {
		return nil, nil, err
	}
	for _, t := range tags {
		if err := putTagTx(ctx, tx, secretID, t.Key, t.Value); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}
	if err := r.flush(); err != nil {
		return nil, nil, err
	}

	sec, err := r.DescribeSecret(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	ver, err := getVersionByStage(ctx, r.db, sec.ID, StageCurrent)
	if err != nil {
		return nil, nil, err
	}
	return sec, ver, nil
}

// PutSecretValue adds a new version to an existing secret, staged
// AWSCURRENT, demoting the prior AWSCURRENT version to AWSPREVIOUS (and
// stripping AWSPREVIOUS from wherever it previously sat). Concurrent calls
// against the same secret are serialized by writeMu; ties resolve in lock
// acquisition order, which matches DB commit order since each call commits
// before releasing the lock.
func (r *Repository) PutSecretValue(ctx context.Context, name string, secretString *string, secretBinary []byte, clientRequestToken string, stages []string) (*SecretRecord, *SecretVersionRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	sec, err := getSecretByNameTx(ctx, tx, name, false)
	if err != nil {
		return nil, nil, err
	}
	if sec.IsDeleted() {
		return nil, nil, ErrAlreadyDeleted
	}

	versionID := clientRequestToken
	if versionID == "" {
		versionID = newVersionID()
	}

	if existingVer, err := getVersionTx(ctx, tx, sec.ID, versionID); err == nil {
		if !existingVer.SameContent(secretString, secretBinary) {
			return nil, nil, ErrTokenConflict
		}
		if err := tx.Commit(); err != nil {
			return nil, nil, err
		}
		return sec, existingVer, nil
	} else if err != ErrNotFound {
		return nil, nil, err
	}

	now := nowUTC()
	if err := insertVersionTx(ctx, tx, sec.ID, versionID, secretString, secretBinary, now); err != nil {
		return nil, nil, err
	}

	prevCurrent, err := getVersionByStageTx(ctx, tx, sec.ID, StageCurrent)
	if err != nil && err != ErrNotFound {
		return nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM secret_version_stages WHERE secret_id = ? AND stage = ?`, sec.ID, StagePrevious); err != nil {
		return nil, nil, fmt.Errorf("clearing AWSPREVIOUS: %w", err)
	}
	if prevCurrent != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM secret_version_stages WHERE secret_id = ? AND stage = ?`, sec.ID, StageCurrent); err != nil {
			return nil, nil, fmt.Errorf("clearing AWSCURRENT: %w", err)
		}
		if err := setStageTx(ctx, tx, sec.ID, prevCurrent.VersionID, StagePrevious); err != nil {
			return nil, nil, err
		}
	}
	if err := setStageTx(ctx, tx, sec.ID, versionID, StageCurrent); err != nil {
		return nil, nil, err
	}
	for _, s := range stages {
		if s == StageCurrent || s == StagePrevious {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM secret_version_stages WHERE secret_id = ? AND stage = ?`, sec.ID, s); err != nil {
			return nil, nil, err
		}
		if err := setStageTx(ctx, tx, sec.ID, versionID, s); err != nil {
			return nil, nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE secrets SET last_changed_date = ? WHERE id = ?`, fmtTime(now), sec.ID); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}
	if err := r.flush(); err != nil {
		return nil, nil, err
	}

	ver, err := getVersionByStage(ctx, r.db, sec.ID, StageCurrent)
	if err != nil {
		return nil, nil, err
	}
	return sec, ver, nil
}

// GetSecretValue fetches the payload of one version, selected by VersionId
// if given, else by VersionStage (default AWSCURRENT).
func (r *Repository) GetSecretValue(ctx context.Context, name, versionID, versionStage string) (*SecretRecord, *SecretVersionRecord, error) {
	sec, err := getSecretByName(ctx, r.db, name, false)
	if err != nil {
		return nil, nil, err
	}
	if sec.IsDeleted() {
		return nil, nil, ErrNotFound
	}

	var ver *SecretVersionRecord
	if versionID != "" {
		ver, err = getVersionTx(ctx, r.db, sec.ID, versionID)
	} else {
		stage := versionStage
		if stage == "" {
			stage = StageCurrent
		}
		ver, err = getVersionByStage(ctx, r.db, sec.ID, stage)
	}
	if err != nil {
		return nil, nil, err
	}

	now := nowUTC()
	if _, err := r.db.ExecContext(ctx, `UPDATE secrets SET last_accessed_date = ? WHERE id = ?`, fmtTime(now), sec.ID); err != nil {
		return nil, nil, err
	}
	return sec, ver, nil
}

// BatchGetSecretValue fetches current values for an explicit list of names,
// or for every secret matching filterOpts when names is empty.
func (r *Repository) BatchGetSecretValue(ctx context.Context, names []string, filterOpts *ListSecretsOptions) ([]*SecretRecord, []*SecretVersionRecord, []string, error) {
	var secrets []*SecretRecord
	var versions []*SecretVersionRecord
	var errored []string

	if len(names) > 0 {
		for _, n := range names {
			sec, ver, err := r.GetSecretValue(ctx, n, "", "")
			if err != nil {
				errored = append(errored, n)
				continue
			}
			secrets = append(secrets, sec)
			versions = append(versions, ver)
		}
		return secrets, versions, errored, nil
	}

	opts := ListSecretsOptions{}
	if filterOpts != nil {
		opts = *filterOpts
	}
	page, err := r.ListSecrets(ctx, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	for i := range page.Secrets {
		sec := page.Secrets[i]
		ver, err := getVersionByStage(ctx, r.db, sec.ID, StageCurrent)
		if err != nil {
			errored = append(errored, sec.Name)
			continue
		}
		secrets = append(secrets, &sec)
		versions = append(versions, ver)
	}
	return secrets, versions, errored, nil
}

// DescribeSecret returns metadata (no payload) for a secret by name.
func (r *Repository) DescribeSecret(ctx context.Context, name string) (*SecretRecord, error) {
	return getSecretByName(ctx, r.db, name, true)
}

// UpdateSecret updates a secret's description, kms_key_id, and/or adds a
// new current version in one call (mirrors the real API's overloaded
// semantics: UpdateSecret can rotate the payload too).
func (r *Repository) UpdateSecret(ctx context.Context, name string, description, kmsKeyID *string, secretString *string, secretBinary []byte, clientRequestToken string) (*SecretRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sec, err := getSecretByNameTx(ctx, tx, name, false)
	if err != nil {
		return nil, err
	}
	if sec.IsDeleted() {
		return nil, ErrAlreadyDeleted
	}

	now := nowUTC()
	if description != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE secrets SET description = ?, description_lower = ? WHERE id = ?`,
			*description, strings.ToLower(*description), sec.ID); err != nil {
			return nil, err
		}
	}
	if kmsKeyID != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE secrets SET kms_key_id = ? WHERE id = ?`, *kmsKeyID, sec.ID); err != nil {
			return nil, err
		}
	}
	if secretString != nil || secretBinary != nil {
		versionID := clientRequestToken
		if versionID == "" {
			versionID = newVersionID()
		}
		if err := insertVersionTx(ctx, tx, sec.ID, versionID, secretString, secretBinary, now); err != nil {
			return nil, err
		}
		prevCurrent, err := getVersionByStageTx(ctx, tx, sec.ID, StageCurrent)
		if err != nil && err != ErrNotFound {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM secret_version_stages WHERE secret_id = ? AND stage = ?`, sec.ID, StagePrevious); err != nil {
			return nil, err
		}
		if prevCurrent != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM secret_version_stages WHERE secret_id = ? AND stage = ?`, sec.ID, StageCurrent); err != nil {
				return nil, err
			}
			if err := setStageTx(ctx, tx, sec.ID, prevCurrent.VersionID, StagePrevious); err != nil {
				return nil, err
			}
		}
		if err := setStageTx(ctx, tx, sec.ID, versionID, StageCurrent); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE secrets SET last_changed_date = ? WHERE id = ?`, fmtTime(now), sec.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := r.flush(); err != nil {
		return nil, err
	}
	return r.DescribeSecret(ctx, name)
}

// DeleteSecret soft-deletes a secret, or (forceDeleteWithoutRecovery)
// permanently removes it and all its versions immediately.
func (r *Repository) DeleteSecret(ctx context.Context, name string, recoveryWindowDays int, forceDeleteWithoutRecovery bool) (*SecretRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sec, err := getSecretByNameTx(ctx, tx, name, false)
	if err != nil {
		return nil, err
	}
	if sec.IsDeleted() {
		return nil, ErrAlreadyDeleted
	}

	if forceDeleteWithoutRecovery {
		if _, err := tx.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, sec.ID); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		if err := r.flush(); err != nil {
			return nil, err
		}
		now := nowUTC()
		sec.DeletedAt = &now
		return sec, nil
	}

	if recoveryWindowDays == 0 {
		recoveryWindowDays = 30
	}
	now := nowUTC()
	if _, err := tx.ExecContext(ctx, `UPDATE secrets SET deleted_at = ?, recovery_window_days = ?, last_changed_date = ? WHERE id = ?`,
		fmtTime(now), recoveryWindowDays, fmtTime(now), sec.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := r.flush(); err != nil {
		return nil, err
	}
	return getSecretByName(ctx, r.db, name, true)
}

// RestoreSecret clears a secret's pending-deletion state. It is the one
// mutation permitted on a soft-deleted secret.
func (r *Repository) RestoreSecret(ctx context.Context, name string) (*SecretRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sec, err := getSecretByNameTx(ctx, tx, name, true)
	if err != nil {
		return nil, err
	}
	if !sec.IsDeleted() {
		return nil, ErrNotDeleted
	}
	now := nowUTC()
	if _, err := tx.ExecContext(ctx, `UPDATE secrets SET deleted_at = NULL, recovery_window_days = NULL, last_changed_date = ? WHERE id = ?`,
		fmtTime(now), sec.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := r.flush(); err != nil {
		return nil, err
	}
	return getSecretByName(ctx, r.db, name, false)
}

// ListSecretVersionIds returns every version of a secret with its stage set.
func (r *Repository) ListSecretVersionIds(ctx context.Context, name string, includeDeprecated bool) (*SecretRecord, []SecretVersionRecord, error) {
	sec, err := getSecretByName(ctx, r.db, name, true)
	if err != nil {
		return nil, nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT version_id, secret_string, secret_binary, created_at FROM secret_versions WHERE secret_id = ? ORDER BY created_at`, sec.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var out []SecretVersionRecord
	for rows.Next() {
		v, err := scanVersionRow(rows, sec.ID)
		if err != nil {
			return nil, nil, err
		}
		if _, err := loadStages(ctx, r.db, v); err != nil {
			return nil, nil, err
		}
		if !includeDeprecated && len(v.Stages) == 0 {
			continue
		}
		out = append(out, *v)
	}
	return sec, out, rows.Err()
}

// UpdateSecretVersionStage moves stage from removeFromVersionID (if any) to
// moveToVersionID (if any), atomically. Moving AWSCURRENT without a
// destination version is rejected: the invariant that exactly one version
// carries AWSCURRENT must never be violated, even transiently.
func (r *Repository) UpdateSecretVersionStage(ctx context.Context, name, stage, removeFromVersionID, moveToVersionID string) (*SecretRecord, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if stage == StageCurrent && moveToVersionID == "" {
		return nil, ErrInvalidStage
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sec, err := getSecretByNameTx(ctx, tx, name, false)
	if err != nil {
		return nil, err
	}
	if sec.IsDeleted() {
		return nil, ErrAlreadyDeleted
	}

	if removeFromVersionID != "" {
		if _, err := getVersionTx(ctx, tx, sec.ID, removeFromVersionID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM secret_version_stages WHERE secret_id = ? AND version_id = ? AND stage = ?`,
			sec.ID, removeFromVersionID, stage); err != nil {
			return nil, err
		}
	}
	if moveToVersionID != "" {
		if _, err := getVersionTx(ctx, tx, sec.ID, moveToVersionID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM secret_version_stages WHERE secret_id = ? AND stage = ?`, sec.ID, stage); err != nil {
			return nil, err
		}
		if err := setStageTx(ctx, tx, sec.ID, moveToVersionID, stage); err != nil {
			return nil, err
		}
	}

	now := nowUTC()
	if _, err := tx.ExecContext(ctx, `UPDATE secrets SET last_changed_date = ? WHERE id = ?`, fmtTime(now), sec.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if err := r.flush(); err != nil {
		return nil, err
	}
	return getSecretByName(ctx, r.db, name, false)
}

// TagResource attaches (or overwrites) tags on a secret.
func (r *Repository) TagResource(ctx context.Context, name string, tags []TagRecord) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sec, err := getSecretByNameTx(ctx, tx, name, false)
	if err != nil {
		return err
	}
	if sec.IsDeleted() {
		return ErrAlreadyDeleted
	}
	for _, t := range tags {
		if err := putTagTx(ctx, tx, sec.ID, t.Key, t.Value); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return r.flush()
}

// UntagResource removes the named tag keys from a secret.
func (r *Repository) UntagResource(ctx context.Context, name string, tagKeys []string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sec, err := getSecretByNameTx(ctx, tx, name, false)
	if err != nil {
		return err
	}
	if sec.IsDeleted() {
		return ErrAlreadyDeleted
	}
	for _, k := range tagKeys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM secret_tags WHERE secret_id = ? AND key = ?`, sec.ID, k); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return r.flush()
}

// ListSecrets returns one page of secrets matching opts, newest-created
// first unless SortAscending.
func (r *Repository) ListSecrets(ctx context.Context, opts ListSecretsOptions) (*ListSecretsResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 100
	}

	filterHash := hashFilters(opts.Filters, opts.IncludeDeleted)
	offset := 0
	if opts.NextToken != "" {
		tok, err := decodeToken(opts.NextToken)
		if err != nil || tok.FilterHash != filterHash {
			return nil, ErrInvalidNextToken
		}
		offset = tok.Offset
	}

	where := "1=1"
	if !opts.IncludeDeleted {
		where += " AND deleted_at IS NULL"
	}
	order := "created_at DESC, id DESC"
	if opts.SortAscending {
		order = "created_at ASC, id ASC"
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, arn, description, kms_key_id, created_at, deleted_at,
		       recovery_window_days, last_accessed_date, last_changed_date
		FROM secrets WHERE %s ORDER BY %s`, where, order))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []SecretRecord
	for rows.Next() {
		s, err := scanSecretRow(rows)
		if err != nil {
			return nil, err
		}
		if matchesFilters(ctx, r.db, *s, opts.Filters) {
			all = append(all, *s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	end := offset + maxResults
	if end > len(all) {
		end = len(all)
	}
	if offset > len(all) {
		offset = len(all)
	}
	page := all[offset:end]
	for i := range page {
		tags, err := loadTags(ctx, r.db, page[i].ID)
		if err != nil {
			return nil, err
		}
		page[i].Tags = tags
	}

	result := &ListSecretsResult{Secrets: page}
	if end < len(all) {
		result.NextToken = encodeToken(nextToken{Offset: end, FilterHash: filterHash})
	}
	return result, nil
}

func matchesFilters(ctx context.Context, db querier, s SecretRecord, filters []ListFilter) bool {
	for _, f := range filters {
		if !matchesOneFilter(ctx, db, s, f) {
			return false
		}
	}
	return true
}

func matchesOneFilter(ctx context.Context, db querier, s SecretRecord, f ListFilter) bool {
	match := func(haystack string) bool {
		h := strings.ToLower(haystack)
		for _, v := range f.Values {
			if strings.HasPrefix(h, strings.ToLower(v)) {
				if f.Negate {
					return false
				}
				return true
			}
		}
		return f.Negate
	}
	switch f.Key {
	case "name":
		return match(s.Name)
	case "description":
		return match(s.Description)
	case "all":
		if match(s.Name) || match(s.Description) {
			return true
		}
		tags, _ := loadTags(ctx, db, s.ID)
		for _, t := range tags {
			if match(t.Key) || match(t.Value) {
				return true
			}
		}
		return false
	case "tag-key":
		tags, _ := loadTags(ctx, db, s.ID)
		for _, t := range tags {
			if match(t.Key) {
				return true
			}
		}
		return f.Negate
	case "tag-value":
		tags, _ := loadTags(ctx, db, s.ID)
		for _, t := range tags {
			if match(t.Value) {
				return true
			}
		}
		return f.Negate
	case "primary-region":
		return true
	default:
		return true
	}
}

// --- pagination tokens ---

type nextToken struct {
	Offset     int    `json:"o"`
	FilterHash string `json:"h"`
}

func hashFilters(filters []ListFilter, includeDeleted bool) string {
	b, _ := json.Marshal(struct {
		F []ListFilter
		D bool
	}{filters, includeDeleted})
	return fmt.Sprintf("%x", sha256sum(b))
}

func encodeToken(t nextToken) string {
	b, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeToken(s string) (nextToken, error) {
	var t nextToken
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return t, ErrInvalidNextToken
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return t, ErrInvalidNextToken
	}
	return t, nil
}

// --- low-level helpers shared by the methods above ---

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getSecretByName(ctx context.Context, db querier, name string, includeDeleted bool) (*SecretRecord, error) {
	return getSecretByNameTx(ctx, db, name, includeDeleted)
}

func getSecretByNameTx(ctx context.Context, db querier, name string, includeDeleted bool) (*SecretRecord, error) {
	q := `SELECT id, name, arn, description, kms_key_id, created_at, deleted_at,
	             recovery_window_days, last_accessed_date, last_changed_date
	      FROM secrets WHERE name = ?`
	if !includeDeleted {
		q += " AND deleted_at IS NULL"
	}
	row := db.QueryRowContext(ctx, q, name)
	s, err := scanSecretRow(row)
	if err != nil {
		return nil, err
	}
	tags, err := loadTags(ctx, db, s.ID)
	if err != nil {
		return nil, err
	}
	s.Tags = tags
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSecretRow(row rowScanner) (*SecretRecord, error) {
	var s SecretRecord
	var deletedAt, lastAccessed sql.NullString
	var recoveryWindow sql.NullInt64
	var createdAt, lastChanged string
	err := row.Scan(&s.ID, &s.Name, &s.ARN, &s.Description, &s.KMSKeyID,
		&createdAt, &deletedAt, &recoveryWindow, &lastAccessed, &lastChanged)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning secret row: %w", err)
	}
	s.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	s.LastChangedDate, err = parseTime(lastChanged)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, err
		}
		s.DeletedAt = &t
	}
	if lastAccessed.Valid {
		t, err := parseTime(lastAccessed.String)
		if err != nil {
			return nil, err
		}
		s.LastAccessedDate = &t
	}
	if recoveryWindow.Valid {
		v := int(recoveryWindow.Int64)
		s.RecoveryWindowDays = &v
	}
	return &s, nil
}

func loadTags(ctx context.Context, db querier, secretID int64) ([]TagRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM secret_tags WHERE secret_id = ? ORDER BY key`, secretID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TagRecord
	for rows.Next() {
		var t TagRecord
		if err := rows.Scan(&t.Key, &t.Value); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func putTagTx(ctx context.Context, tx *sql.Tx, secretID int64, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO secret_tags (secret_id, key, value, value_lower) VALUES (?, ?, ?, ?)
		ON CONFLICT(secret_id, key) DO UPDATE SET value = excluded.value, value_lower = excluded.value_lower`,
		secretID, key, value, strings.ToLower(value))
	return err
}

func insertVersionTx(ctx context.Context, tx *sql.Tx, secretID int64, versionID string, secretString *string, secretBinary []byte, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO secret_versions (secret_id, version_id, secret_string, secret_binary, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		secretID, versionID, secretString, secretBinary, fmtTime(now))
	if err != nil {
		return fmt.Errorf("inserting version: %w", err)
	}
	return nil
}

func setStageTx(ctx context.Context, tx *sql.Tx, secretID int64, versionID, stage string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO secret_version_stages (secret_id, version_id, stage) VALUES (?, ?, ?)`,
		secretID, versionID, stage)
	if err != nil {
		return fmt.Errorf("setting stage %s: %w", stage, err)
	}
	return nil
}

func getVersionTx(ctx context.Context, db querier, secretID int64, versionID string) (*SecretVersionRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT version_id, secret_string, secret_binary, created_at
		FROM secret_versions WHERE secret_id = ? AND version_id = ?`, secretID, versionID)
	v, err := scanVersionRow(row, secretID)
	if err != nil {
		return nil, err
	}
	return loadStages(ctx, db, v)
}

func getVersionByStageTx(ctx context.Context, db querier, secretID int64, stage string) (*SecretVersionRecord, error) {
	return getVersionByStage(ctx, db, secretID, stage)
}

func getVersionByStage(ctx context.Context, db querier, secretID int64, stage string) (*SecretVersionRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT v.version_id, v.secret_string, v.secret_binary, v.created_at
		FROM secret_versions v
		JOIN secret_version_stages s ON s.secret_id = v.secret_id AND s.version_id = v.version_id
		WHERE v.secret_id = ? AND s.stage = ?`, secretID, stage)
	v, err := scanVersionRow(row, secretID)
	if err != nil {
		return nil, err
	}
	return loadStages(ctx, db, v)
}

func scanVersionRow(row rowScanner, secretID int64) (*SecretVersionRecord, error) {
	var v SecretVersionRecord
	v.SecretID = secretID
	var createdAt string
	var secretString sql.NullString
	var secretBinary []byte
	err := row.Scan(&v.VersionID, &secretString, &secretBinary, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning version row: %w", err)
	}
	if secretString.Valid {
		s := secretString.String
		v.SecretString = &s
	}
	v.SecretBinary = secretBinary
	v.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// loadStages populates v.Stages from secret_version_stages.
func loadStages(ctx context.Context, db querier, v *SecretVersionRecord) (*SecretVersionRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT stage FROM secret_version_stages WHERE secret_id = ? AND version_id = ?`, v.SecretID, v.VersionID)
	if err != nil {
		return nil, fmt.Errorf("loading stages: %w", err)
	}
	defer rows.Close()
	var stages []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	v.Stages = stages
	return v, rows.Err()
}

func sha256sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}
