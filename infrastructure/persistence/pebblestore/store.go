package pebblestore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.uber.org/zap"

	"trails/application/ports"
	"trails/domain/core/aggregates"
	pkgerrors "trails/pkg/errors"
)

// Key layout:
//   canvas:<id>   one canvas snapshot as JSON
//   meta:<field>  workspace fields (order, apiKeys, settings, personas, lastUsedModel)
//
// Canvases get their own keys so a workspace with many canvases never
// rewrites one giant blob; the meta keys are small and written every time.
const (
	canvasPrefix = "canvas:"

	metaOrder         = "meta:order"
	metaAPIKeys       = "meta:apiKeys"
	metaSettings      = "meta:settings"
	metaPersonas      = "meta:personas"
	metaLastUsedModel = "meta:lastUsedModel"
)

// Store persists the workspace state in a Pebble database
type Store struct {
	db     *pebble.DB
	logger *zap.Logger
}

// NewStore opens (or creates) the database at the given path
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening pebble db at "+path)
	}
	logger.Info("pebble store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// NewMemStore opens an in-memory database, used in tests
func NewMemStore(logger *zap.Logger) (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening in-memory pebble db")
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the full workspace state. A fresh database yields an empty
// state, not an error.
func (s *Store) Load(ctx context.Context) (ports.State, error) {
	state := ports.State{}

	var order []string
	if err := s.getJSON(metaOrder, &order); err != nil {
		return ports.State{}, err
	}
	if err := s.getJSON(metaAPIKeys, &state.APIKeys); err != nil {
		return ports.State{}, err
	}
	if err := s.getJSON(metaSettings, &state.Settings); err != nil {
		return ports.State{}, err
	}
	if err := s.getJSON(metaPersonas, &state.Personas); err != nil {
		return ports.State{}, err
	}

	lastUsed, closer, err := s.db.Get([]byte(metaLastUsedModel))
	if err == nil {
		state.LastUsedModelID = string(lastUsed)
		closer.Close()
	} else if err != pebble.ErrNotFound {
		return ports.State{}, pkgerrors.Wrap(err, "reading last used model")
	}

	snapshots := make(map[string]aggregates.CanvasSnapshot)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(canvasPrefix),
		UpperBound: []byte(canvasPrefix + "\xff"),
	})
	if err != nil {
		return ports.State{}, pkgerrors.Wrap(err, "iterating canvases")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var snap aggregates.CanvasSnapshot
		if err := json.Unmarshal(iter.Value(), &snap); err != nil {
			s.logger.Warn("skipping unreadable canvas record",
				zap.String("key", string(iter.Key())),
				zap.Error(err))
			continue
		}
		snapshots[snap.ID] = snap
	}
	if err := iter.Error(); err != nil {
		return ports.State{}, pkgerrors.Wrap(err, "iterating canvases")
	}

	// The order key decides catalog order; canvases it misses are appended
	// in key order so nothing silently disappears.
	for _, id := range order {
		if snap, ok := snapshots[id]; ok {
			state.Canvases = append(state.Canvases, snap)
			delete(snapshots, id)
		}
	}
	if len(snapshots) > 0 {
		leftover := make([]string, 0, len(snapshots))
		for id := range snapshots {
			leftover = append(leftover, id)
		}
		sort.Strings(leftover)
		for _, id := range leftover {
			state.Canvases = append(state.Canvases, snapshots[id])
		}
	}

	return state, nil
}

// Save writes the full state in one synced batch. Canvas keys absent from
// the state are deleted so removed canvases do not linger.
func (s *Store) Save(ctx context.Context, state ports.State) error {
	keep := make(map[string]struct{}, len(state.Canvases))
	order := make([]string, 0, len(state.Canvases))
	for _, snap := range state.Canvases {
		keep[snap.ID] = struct{}{}
		order = append(order, snap.ID)
	}

	var stale [][]byte
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(canvasPrefix),
		UpperBound: []byte(canvasPrefix + "\xff"),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "iterating canvases")
	}
	for iter.First(); iter.Valid(); iter.Next() {
		id := strings.TrimPrefix(string(iter.Key()), canvasPrefix)
		if _, ok := keep[id]; !ok {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			stale = append(stale, key)
		}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return pkgerrors.Wrap(err, "iterating canvases")
	}
	iter.Close()

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, key := range stale {
		if err := batch.Delete(key, nil); err != nil {
			return pkgerrors.Wrap(err, "deleting stale canvas")
		}
	}
	for _, snap := range state.Canvases {
		data, err := json.Marshal(snap)
		if err != nil {
			return pkgerrors.Wrap(err, "marshaling canvas "+snap.ID)
		}
		if err := batch.Set([]byte(canvasPrefix+snap.ID), data, nil); err != nil {
			return pkgerrors.Wrap(err, "writing canvas "+snap.ID)
		}
	}

	if err := s.setJSON(batch, metaOrder, order); err != nil {
		return err
	}
	if err := s.setJSON(batch, metaAPIKeys, state.APIKeys); err != nil {
		return err
	}
	if err := s.setJSON(batch, metaSettings, state.Settings); err != nil {
		return err
	}
	if err := s.setJSON(batch, metaPersonas, state.Personas); err != nil {
		return err
	}
	if err := batch.Set([]byte(metaLastUsedModel), []byte(state.LastUsedModelID), nil); err != nil {
		return pkgerrors.Wrap(err, "writing last used model")
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return pkgerrors.Wrap(err, "committing state batch")
	}
	return nil
}

func (s *Store) getJSON(key string, out interface{}) error {
	data, closer, err := s.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "reading "+key)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(err, "decoding "+key)
	}
	return nil
}

func (s *Store) setJSON(batch *pebble.Batch, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(err, "marshaling "+key)
	}
	if err := batch.Set([]byte(key), data, nil); err != nil {
		return pkgerrors.Wrap(err, "writing "+key)
	}
	return nil
}
