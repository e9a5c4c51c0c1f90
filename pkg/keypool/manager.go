package keypool

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	log "github.com/charmbracelet/log"

	"github.com/eraycc/g4f-azure/pkg/store"
	"github.com/eraycc/g4f-azure/pkg/upstream"
)

var (
	nowFunc       = time.Now
	randIndexFunc = rand.Intn
)

// Model is one normalized catalog entry in the OpenAI schema, extended with
// the upstream capability flags that drive request routing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
	Image   bool   `json:"image"`
	Vision  bool   `json:"vision"`
	Audio   bool   `json:"audio"`
}

// Snapshot is the cached normalized model list, shaped for GET /v1/models.
type Snapshot struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Find returns the entry with the given id, or nil.
func (s *Snapshot) Find(id string) *Model {
	if s == nil {
		return nil
	}
	for i := range s.Data {
		if s.Data[i].ID == id {
			return &s.Data[i]
		}
	}
	return nil
}

type entry struct {
	profileName string
	userAgent   string
	createdAt   time.Time
}

// Options bound the pool and the two freshness windows.
type Options struct {
	MaxKeys   int
	KeyExpiry time.Duration
	// CatalogWindow is how long a fetched model snapshot stays fresh.
	CatalogWindow time.Duration
}

// Manager owns the in-memory credential pool and the catalog cache. It is a
// single injectable instance shared by all request handlers; one mutex
// serializes pool and cache mutation. The store is a passive sink: a failed
// write or delete is logged and the in-memory state stays authoritative.
type Manager struct {
	client *upstream.Client
	store  store.Store
	opts   Options

	mu        sync.Mutex
	keys      map[string]entry
	catalog   *Snapshot
	fetchedAt time.Time
}

func NewManager(client *upstream.Client, st store.Store, opts Options) *Manager {
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 3
	}
	if opts.KeyExpiry <= 0 {
		opts.KeyExpiry = time.Hour
	}
	if opts.CatalogWindow <= 0 {
		opts.CatalogWindow = 7 * 24 * time.Hour
	}
	if st == nil {
		st = store.Nop{}
	}
	m := &Manager{
		client: client,
		store:  st,
		opts:   opts,
		keys:   map[string]entry{},
	}
	m.loadFromStore()
	return m
}

func (m *Manager) loadFromStore() {
	recs, err := m.store.LoadCredentials()
	if err != nil {
		log.Warn("load credentials from store", "err", err)
	}
	for _, rec := range recs {
		m.keys[rec.Key] = entry{
			profileName: rec.ProfileName,
			userAgent:   rec.UserAgent,
			createdAt:   rec.CreatedAt,
		}
	}
	if len(m.keys) > 0 {
		log.Info("restored credential pool", "count", len(m.keys))
	}
	data, fetchedAt, err := m.store.LoadCatalog()
	if err != nil {
		log.Warn("load catalog from store", "err", err)
		return
	}
	if len(data) == 0 {
		return
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn("decode persisted catalog", "err", err)
		return
	}
	m.catalog = &snap
	m.fetchedAt = fetchedAt
}

// Size reports the current pool size, expired entries included.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// Acquire returns a valid credential and its User-Agent. Expired entries are
// purged first (from memory and store); among the survivors one is picked
// uniformly at random. An empty pool triggers a handshake. The MaxKeys bound
// is advisory: when every entry is expired a new credential is minted
// regardless, because having some credential dominates the size bound.
func (m *Manager) Acquire(ctx context.Context) (credential, userAgent string, err error) {
	m.mu.Lock()
	expired := m.purgeLocked(nowFunc())
	if len(m.keys) > 0 {
		keys := make([]string, 0, len(m.keys))
		for k := range m.keys {
			keys = append(keys, k)
		}
		k := keys[randIndexFunc(len(keys))]
		ua := m.keys[k].userAgent
		m.mu.Unlock()
		m.deleteFromStore(expired)
		return k, ua, nil
	}
	m.mu.Unlock()
	m.deleteFromStore(expired)

	key, profile, err := m.client.Handshake(ctx)
	if err != nil {
		return "", "", err
	}
	created := nowFunc()
	m.mu.Lock()
	m.keys[key] = entry{profileName: profile.Name, userAgent: profile.UserAgent, createdAt: created}
	m.mu.Unlock()
	log.Info("minted upstream credential", "profile", profile.Name)

	if err := m.store.SaveCredential(store.CredentialRecord{
		Key:         key,
		ProfileName: profile.Name,
		UserAgent:   profile.UserAgent,
		CreatedAt:   created,
	}); err != nil {
		log.Warn("persist credential", "err", err)
	}
	return key, profile.UserAgent, nil
}

// purgeLocked removes expired entries from the map and returns their keys so
// the store deletes can run outside the lock.
func (m *Manager) purgeLocked(now time.Time) []string {
	var expired []string
	for k, e := range m.keys {
		if now.Sub(e.createdAt) > m.opts.KeyExpiry {
			expired = append(expired, k)
			delete(m.keys, k)
		}
	}
	return expired
}

func (m *Manager) deleteFromStore(keys []string) {
	for _, k := range keys {
		if err := m.store.DeleteCredential(k); err != nil {
			log.Warn("delete expired credential", "err", err)
		}
	}
	if len(keys) > 0 {
		log.Debug("purged expired credentials", "count", len(keys))
	}
}

// Models returns the cached catalog snapshot, refetching it from upstream
// when the freshness window has elapsed. The snapshot is replaced as one
// unit; readers never observe a partially built catalog. Concurrent
// refreshers may both fetch - last write wins, which is harmless because
// both snapshots are complete.
func (m *Manager) Models(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	if m.catalog != nil && nowFunc().Sub(m.fetchedAt) < m.opts.CatalogWindow {
		snap := m.catalog
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	credential, userAgent, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	records, err := m.client.ListModels(ctx, credential, userAgent)
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	snap := &Snapshot{Object: "list", Data: make([]Model, 0, len(records))}
	for _, rec := range records {
		snap.Data = append(snap.Data, Model{
			ID:      rec.ID,
			Object:  "model",
			Created: now.Unix(),
			OwnedBy: "",
			Image:   rec.Image,
			Vision:  rec.Vision,
			Audio:   rec.Audio,
		})
	}

	m.mu.Lock()
	m.catalog = snap
	m.fetchedAt = now
	m.mu.Unlock()

	if data, err := json.Marshal(snap); err == nil {
		if err := m.store.SaveCatalog(data, now); err != nil {
			log.Warn("persist catalog", "err", err)
		}
	}
	log.Info("refreshed model catalog", "models", len(snap.Data))
	return snap, nil
}
