package store

import "time"

// CredentialRecord is one persisted upstream credential. Key is the
// base64-encoded ciphertext that doubles as the bearer token; it is treated
// as an opaque string everywhere.
type CredentialRecord struct {
	Key         string
	ProfileName string
	UserAgent   string
	CreatedAt   time.Time
}

// Store persists credentials and a single cached model catalog snapshot.
// Implementations carry no business logic: expiry and freshness decisions
// belong to the pool manager.
type Store interface {
	LoadCredentials() ([]CredentialRecord, error)
	SaveCredential(rec CredentialRecord) error
	DeleteCredential(key string) error

	SaveCatalog(data []byte, fetchedAt time.Time) error
	LoadCatalog() (data []byte, fetchedAt time.Time, err error)

	Close() error
}

// Nop discards all writes and loads nothing. Used when persistence is
// disabled; the pool then lives purely in memory.
type Nop struct{}

func (Nop) LoadCredentials() ([]CredentialRecord, error) { return nil, nil }
func (Nop) SaveCredential(CredentialRecord) error        { return nil }
func (Nop) DeleteCredential(string) error                { return nil }
func (Nop) SaveCatalog([]byte, time.Time) error          { return nil }
func (Nop) LoadCatalog() ([]byte, time.Time, error)      { return nil, time.Time{}, nil }
func (Nop) Close() error                                 { return nil }
