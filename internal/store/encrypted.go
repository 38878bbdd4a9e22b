package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	secretscrypto "github.com/bleepforge/secretsmanager/internal/crypto"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// containerMagic identifies an encrypted container file produced by this
// package, so Open can distinguish "no file yet" from "unreadable file".
const containerMagic = "SMGR1\x00"

// Repository is the secret repository: CRUD over secrets, versions, stages,
// and tags, enforcing the data-model invariants, backed by an encrypted
// SQLite file. It is the sole writer of persistent state.
//
// The on-disk file at Path is never handed to SQLite directly. Instead, a
// plaintext SQLite working copy lives in a private temp file; the container
// at Path holds that working file's bytes sealed with AES-256-GCM under a
// key derived from the operator passphrase. Repository re-seals the working
// file after every committed mutation and on Close, so the container on
// disk never holds plaintext secret data at rest.
type Repository struct {
	db       *sql.DB
	tempPath string
	path     string
	salt     []byte
	key      []byte
	params   secretscrypto.Params
	arnConfig ARNConfig

	// writeMu serializes mutating operations process-wide, per the
	// single-writer/multi-reader resource model: read-only handlers may
	// proceed concurrently, but every mutation holds this for its whole
	// transaction plus the subsequent re-seal.
	writeMu sync.Mutex
}

// Open opens (or creates) the encrypted store at path, deriving the file
// key from passphrase. The working SQLite file is materialized in a private
// temp location and migrated to the current schema.
func Open(path, passphrase string) (*Repository, error) {
	tmp, err := os.CreateTemp("", "secretsmanager-working-*.db")
	if err != nil {
		return nil, fmt.Errorf("creating working file: %w", err)
	}
	tempPath := tmp.Name()
	tmp.Close()

	salt, key, err := loadOrInitKey(path, passphrase, tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	db, err := sql.Open("sqlite", tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("opening working database: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	r := &Repository{
		db:       db,
		tempPath: tempPath,
		path:     path,
		salt:     salt,
		key:      key,
		params:   secretscrypto.DefaultParams,
	}
	return r, nil
}

// loadOrInitKey reads and decrypts an existing container at path into
// tempPath, or — if path does not exist — generates a fresh salt and key
// for a brand-new container. Returns the salt and derived key either way.
func loadOrInitKey(path, passphrase, tempPath string) (salt, key []byte, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("reading store file: %w", err)
		}
		salt, err = secretscrypto.NewSalt()
		if err != nil {
			return nil, nil, err
		}
		key, err = secretscrypto.DeriveKey(secretscrypto.DefaultParams, passphrase, salt)
		if err != nil {
			return nil, nil, err
		}
		return salt, key, nil
	}

	if len(raw) < len(containerMagic)+SaltSize() {
		return nil, nil, fmt.Errorf("store file is too short to be a valid container")
	}
	if string(raw[:len(containerMagic)]) != containerMagic {
		return nil, nil, fmt.Errorf("store file has an unrecognized header")
	}
	rest := raw[len(containerMagic):]
	salt = append([]byte(nil), rest[:SaltSize()]...)
	sealed := rest[SaltSize():]

	key, err = secretscrypto.DeriveKey(secretscrypto.DefaultParams, passphrase, salt)
	if err != nil {
		return nil, nil, err
	}
	plaintext, err := secretscrypto.Open(key, sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting store file (wrong passphrase?): %w", err)
	}
	if err := os.WriteFile(tempPath, plaintext, 0o600); err != nil {
		return nil, nil, fmt.Errorf("materializing working file: %w", err)
	}
	return salt, key, nil
}

// SaltSize exposes the crypto package's salt length for container framing.
func SaltSize() int { return secretscrypto.SaltSize }

// flush re-reads the plaintext working file, seals it, and atomically
// replaces the container at r.path. Callers must hold writeMu.
func (r *Repository) flush() error {
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing WAL: %w", err)
	}
	plaintext, err := os.ReadFile(r.tempPath)
	if err != nil {
		return fmt.Errorf("reading working file: %w", err)
	}
	sealed, err := secretscrypto.Seal(r.key, plaintext)
	if err != nil {
		return fmt.Errorf("sealing store file: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	out := append([]byte(containerMagic), r.salt...)
	out = append(out, sealed...)

	tmpOut, err := os.CreateTemp(dir, ".secretsmanager-store-*.tmp")
	if err != nil {
		return fmt.Errorf("creating replacement file: %w", err)
	}
	defer os.Remove(tmpOut.Name())
	if _, err := tmpOut.Write(out); err != nil {
		tmpOut.Close()
		return fmt.Errorf("writing replacement file: %w", err)
	}
	if err := tmpOut.Close(); err != nil {
		return fmt.Errorf("closing replacement file: %w", err)
	}
	if err := os.Rename(tmpOut.Name(), r.path); err != nil {
		return fmt.Errorf("renaming replacement file into place: %w", err)
	}
	return nil
}

// Close seals the current state to disk and releases the working file.
func (r *Repository) Close() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	flushErr := r.flush()
	closeErr := r.db.Close()
	os.Remove(r.tempPath)
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Ping checks connectivity to the working database.
func (r *Repository) Ping() error {
	return r.db.Ping()
}
