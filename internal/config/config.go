// Package config is the default file-backed implementation of the
// engine's config-snapshot collaborator. It generalizes the teacher's
// config/setting.go (package-global pointer populated from a JSON
// file, env-var override of the path, Reload entrypoint, eager
// per-entry verify) from a table of proxy listen-rules to an Arrow
// agent identity plus service table.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
)

// EnvPath is the environment variable the teacher's MOTO_CONFIG
// equivalent uses to override the default config file path.
const EnvPath = "ARROW_AGENT_CONFIG"

// DefaultPath mirrors the teacher's "config/setting.json" default.
const DefaultPath = "config/agent.json"

// Service describes one entry in the advertised service table. An
// empty Address marks a Control-only service with no local address to
// proxy to.
type Service struct {
	ID      uint16 `json:"id"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// HasAddress reports whether this service can be proxied to a local
// TCP address (false for the reserved Control service and any entry
// intentionally left address-less).
func (s Service) HasAddress() bool { return s.Address != "" }

// Table is the advertised service catalog. It is serialized opaquely
// onto the wire inside REGISTER/UPDATE bodies, so JSON is an
// implementation detail of this default Snapshot, not a wire contract
// the engine parses — the engine only ever inspects it through Lookup.
type Table struct {
	Services []Service `json:"services"`
}

// Lookup finds a service by id.
func (t Table) Lookup(id uint16) (Service, bool) {
	for _, s := range t.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// Marshal serializes the table for embedding in REGISTER/UPDATE bodies.
func (t Table) Marshal() []byte {
	b, err := json.Marshal(t)
	if err != nil {
		// Table contents are always JSON-marshalable plain data;
		// a failure here means a caller built an invalid Table.
		panic(fmt.Sprintf("config: service table marshal: %v", err))
	}
	return b
}

// Snapshot is the narrow external collaborator the engine depends on.
// internal/engine uses only this interface (and the Table/Service
// types it returns), never FileStore; it is kept here next to its
// default file-backed implementation for discoverability.
type Snapshot interface {
	UUID() uuid.UUID
	MAC() [6]byte
	Password() []byte
	Version() uint64
	Table() Table
	Lookup(serviceID uint16) (Service, bool)
	Scanning() bool
}

type fileFormat struct {
	UUID     string    `json:"uuid"`
	MAC      string    `json:"mac_address"`
	Password string    `json:"password"`
	Version  uint64    `json:"version"`
	Services []Service `json:"services"`
	Log      struct {
		Level string `json:"level"`
		Path  string `json:"path"`
	} `json:"log"`
}

type snapshot struct {
	id       uuid.UUID
	mac      [6]byte
	password []byte
	version  uint64
	table    Table
	scanning bool
}

func (s *snapshot) UUID() uuid.UUID   { return s.id }
func (s *snapshot) MAC() [6]byte      { return s.mac }
func (s *snapshot) Password() []byte  { return s.password }
func (s *snapshot) Version() uint64   { return s.version }
func (s *snapshot) Table() Table      { return s.table }
func (s *snapshot) Scanning() bool    { return s.scanning }
func (s *snapshot) Lookup(id uint16) (Service, bool) {
	return s.table.Lookup(id)
}

// FileStore holds the live config snapshot loaded from disk and lets
// callers flip the scanning flag concurrently. Access is through a
// mutex; acquisitions are short and strictly read-mostly.
type FileStore struct {
	mu   sync.RWMutex
	snap *snapshot
}

// Load reads and parses the config file at path (or EnvPath/DefaultPath
// if path is empty), verifying every service entry eagerly, matching
// the teacher's init()/Reload shape.
func Load(path string) (*FileStore, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		path = DefaultPath
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	snap, err := parse(buf)
	if err != nil {
		return nil, err
	}
	return &FileStore{snap: snap}, nil
}

// Reload re-reads the file at path and atomically swaps the live
// snapshot, matching the teacher's Reload (new config replaces the
// global pointer only if it parses and verifies cleanly).
func (f *FileStore) Reload(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	snap, err := parse(buf)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
	return nil
}

// SetScanning flips the scanning flag the GET_STATUS handler reports.
func (f *FileStore) SetScanning(scanning bool) {
	f.mu.Lock()
	next := *f.snap
	next.scanning = scanning
	f.snap = &next
	f.mu.Unlock()
}

// Snapshot returns the current live config. The returned value is
// immutable; callers must call Snapshot again to observe a Reload.
func (f *FileStore) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}

func parse(buf []byte) (*snapshot, error) {
	var ff fileFormat
	if err := json.Unmarshal(buf, &ff); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	id, err := uuid.Parse(ff.UUID)
	if err != nil {
		return nil, fmt.Errorf("config: invalid uuid: %w", err)
	}
	mac, err := net.ParseMAC(ff.MAC)
	if err != nil || len(mac) != 6 {
		return nil, fmt.Errorf("config: invalid mac_address %q", ff.MAC)
	}
	var macArr [6]byte
	copy(macArr[:], mac)

	for i, svc := range ff.Services {
		if svc.ID == 0 && svc.HasAddress() {
			return nil, fmt.Errorf("config: service at pos %d reuses reserved id 0", i)
		}
	}

	return &snapshot{
		id:       id,
		mac:      macArr,
		password: []byte(ff.Password),
		version:  ff.Version,
		table:    Table{Services: ff.Services},
	}, nil
}
