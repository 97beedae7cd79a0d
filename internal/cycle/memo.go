package cycle

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"cyclecal/internal/model"
	"cyclecal/internal/registry"
)

// Input bundles everything Generate depends on.
type Input struct {
	Config     model.CycleConfiguration
	Exceptions registry.Exceptions
	Overrides  registry.Overrides
	Classes    registry.ClassTable
}

// Fingerprint identifies an Input by content.
type Fingerprint [32]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// fingerprintDoc is the canonical shape that gets hashed. Entries are
// already sorted by the registries, and Core Deterministic Encoding fixes
// the remaining byte-level choices.
type fingerprintDoc struct {
	Config     model.CycleConfiguration
	Exceptions []registry.ExceptionEntry
	Overrides  []registry.OverrideEntry
	Classes    []registry.ClassEntry
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.TextMarshaler = cbor.TextMarshalerTextString
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("cycle: CBOR encoder initialization failed: " + err.Error())
	}
}

// FingerprintOf hashes the canonical encoding of in with BLAKE3.
func FingerprintOf(in Input) (Fingerprint, error) {
	data, err := encMode.Marshal(fingerprintDoc{
		Config:     in.Config,
		Exceptions: in.Exceptions.Entries(),
		Overrides:  in.Overrides.Entries(),
		Classes:    in.Classes.Entries(),
	})
	if err != nil {
		return Fingerprint{}, fmt.Errorf("cycle: encode input: %w", err)
	}
	return Fingerprint(blake3.Sum256(data)), nil
}

// Memo caches the last generated schedule and recomputes only when the
// fingerprint of the input changes. Callers must treat returned slices as
// read-only. Memo is not safe for concurrent use.
type Memo struct {
	key    Fingerprint
	days   []model.GeneratedDay
	filled bool

	// Hits and Misses count lookups, mostly for logging and tests.
	Hits   int
	Misses int
}

// Get returns the schedule for in, generating it on a cache miss.
func (m *Memo) Get(in Input) ([]model.GeneratedDay, Fingerprint, error) {
	key, err := FingerprintOf(in)
	if err != nil {
		return nil, Fingerprint{}, err
	}
	if m.filled && key == m.key {
		m.Hits++
		return m.days, key, nil
	}
	m.Misses++
	m.days = Generate(in.Config, in.Exceptions, in.Overrides, in.Classes)
	m.key = key
	m.filled = true
	return m.days, key, nil
}
