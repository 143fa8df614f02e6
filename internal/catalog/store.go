package catalog

import (
	"errors"
	"sort"

	"github.com/google/uuid"
	tsync "github.com/hbomb79/Tome/pkg/sync"
)

var ErrDuplicateLocation = errors.New("an item already exists for this location")

// Store is an in-memory index of the catalogs items, keyed
// by both their ID and their location on disk.
type Store struct {
	items     tsync.TypedSyncMap[uuid.UUID, *Item]
	locations tsync.TypedSyncMap[string, uuid.UUID]
}

func NewStore() *Store {
	return &Store{}
}

// Add inserts the item provided in to the store. If an item already
// exists for the same location, ErrDuplicateLocation is returned.
func (store *Store) Add(item *Item) error {
	if _, loaded := store.locations.LoadOrStore(item.Location(), item.ID); loaded {
		return ErrDuplicateLocation
	}

	store.items.Store(item.ID, item)
	return nil
}

// Get returns the item with the ID provided, or nil if none exists.
func (store *Store) Get(id uuid.UUID) *Item {
	if item, ok := store.items.Load(id); ok {
		return item
	}

	return nil
}

func (store *Store) GetByLocation(path string) *Item {
	if id, ok := store.locations.Load(path); ok {
		return store.Get(id)
	}

	return nil
}

// Remove deletes the item with the ID provided, returning
// the removed item (or nil if it did not exist).
func (store *Store) Remove(id uuid.UUID) *Item {
	item, ok := store.items.LoadAndDelete(id)
	if !ok {
		return nil
	}

	store.locations.Delete(item.Location())
	return item
}

// All returns every item in the store, ordered by location.
func (store *Store) All() []*Item {
	items := store.items.Values()
	sort.Slice(items, func(i, j int) bool { return items[i].Location() < items[j].Location() })
	return items
}

// Locations returns a lookup of all locations known to the store.
func (store *Store) Locations() map[string]uuid.UUID {
	return store.locations.Snapshot()
}
