package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/metadata"
)

type (
	ItemState int

	MetadataEntry struct {
		Key   metadata.MetadataKey
		Value string
	}

	AttributeEntry struct {
		Attribute metadata.ResourceAttribute
		Value     string
	}

	// Item is a single file in the catalog. The metadata and resources
	// of an item retain the order in which they were written, as
	// consumers render them in that order.
	Item struct {
		mu        *sync.RWMutex
		ID        uuid.UUID
		location  string
		mimetype  string
		modTime   time.Time
		state     ItemState
		trouble   error
		metadata  []MetadataEntry
		resources []*Resource
	}

	// Resource is a renderable form of an item. Every item has
	// a primary resource at index 0 representing the file itself.
	Resource struct {
		mu         *sync.RWMutex
		attributes []AttributeEntry
	}
)

const (
	PENDING ItemState = iota
	EXTRACTING
	COMPLETE
	FAILED
	SKIPPED

	// HELD items belong to files which have been modified too recently
	// to be safely inspected, as they may still be being written.
	HELD
)

func (state ItemState) String() string {
	switch state {
	case PENDING:
		return "PENDING"
	case EXTRACTING:
		return "EXTRACTING"
	case COMPLETE:
		return "COMPLETE"
	case FAILED:
		return "FAILED"
	case SKIPPED:
		return "SKIPPED"
	case HELD:
		return "HELD"
	}

	return "UNKNOWN"
}

// NewItem creates a PENDING item for the file at the path
// provided, with an empty primary resource.
func NewItem(path string, mimetype string) *Item {
	mu := &sync.RWMutex{}
	return &Item{
		mu:        mu,
		ID:        uuid.New(),
		location:  path,
		mimetype:  mimetype,
		state:     PENDING,
		metadata:  make([]MetadataEntry, 0),
		resources: []*Resource{{mu: mu, attributes: make([]AttributeEntry, 0)}},
	}
}

func (item *Item) Location() string { return item.location }

// Mimetype returns the content type detected for the items file. Items
// which are HELD have not been sniffed yet and report an empty string.
func (item *Item) Mimetype() string {
	item.mu.RLock()
	defer item.mu.RUnlock()
	return item.mimetype
}

func (item *Item) State() ItemState {
	item.mu.RLock()
	defer item.mu.RUnlock()
	return item.state
}

// Trouble returns the error which caused this item to enter the
// FAILED state, if any.
func (item *Item) Trouble() error {
	item.mu.RLock()
	defer item.mu.RUnlock()
	return item.trouble
}

// SetMetadata stores the value for the key provided. Writing
// a key which is already present replaces its value in place.
func (item *Item) SetMetadata(key metadata.MetadataKey, value string) {
	item.mu.Lock()
	defer item.mu.Unlock()

	for i, entry := range item.metadata {
		if entry.Key == key {
			item.metadata[i].Value = value
			return
		}
	}

	item.metadata = append(item.metadata, MetadataEntry{key, value})
}

// GetMetadata returns the value stored for the key provided.
func (item *Item) GetMetadata(key metadata.MetadataKey) (string, bool) {
	item.mu.RLock()
	defer item.mu.RUnlock()

	for _, entry := range item.metadata {
		if entry.Key == key {
			return entry.Value, true
		}
	}

	return "", false
}

// Metadata returns a copy of the items metadata, in the
// order it was written.
func (item *Item) Metadata() []MetadataEntry {
	item.mu.RLock()
	defer item.mu.RUnlock()

	out := make([]MetadataEntry, len(item.metadata))
	copy(out, item.metadata)
	return out
}

// Resource returns the resource at the index provided. Note that
// an untyped nil is returned for a missing resource so that callers
// comparing the metadata.Resource interface against nil behave.
func (item *Item) Resource(idx int) metadata.Resource {
	if res := item.GetResource(idx); res != nil {
		return res
	}

	return nil
}

// GetResource is the concrete counterpart to Resource.
func (item *Item) GetResource(idx int) *Resource {
	item.mu.RLock()
	defer item.mu.RUnlock()

	if idx < 0 || idx >= len(item.resources) {
		return nil
	}

	return item.resources[idx]
}

func (item *Item) Resources() []*Resource {
	item.mu.RLock()
	defer item.mu.RUnlock()

	out := make([]*Resource, len(item.resources))
	copy(out, item.resources)
	return out
}

// Reset clears the metadata of the item, and the attributes of its
// primary resource, so that it can be populated again from scratch.
func (item *Item) Reset() {
	item.mu.Lock()
	defer item.mu.Unlock()

	item.trouble = nil
	item.metadata = make([]MetadataEntry, 0)
	for _, res := range item.resources {
		res.attributes = make([]AttributeEntry, 0)
	}
}

func (item *Item) setState(state ItemState) {
	item.mu.Lock()
	defer item.mu.Unlock()

	item.state = state
	if state != FAILED {
		item.trouble = nil
	}
}

func (item *Item) fail(err error) {
	item.mu.Lock()
	defer item.mu.Unlock()

	item.state = FAILED
	item.trouble = err
}

func (item *Item) lastModified() time.Time {
	item.mu.RLock()
	defer item.mu.RUnlock()
	return item.modTime
}

// hold clears the item and places it in the HELD state until
// its file has settled.
func (item *Item) hold(modTime time.Time) {
	item.Reset()

	item.mu.Lock()
	defer item.mu.Unlock()
	item.state = HELD
	item.mimetype = ""
	item.modTime = modTime
}

// classify records the content type of the items file, moving the item
// to PENDING if it warrants inspection and SKIPPED otherwise.
func (item *Item) classify(mimetype string, modTime time.Time) {
	item.Reset()

	item.mu.Lock()
	defer item.mu.Unlock()
	item.mimetype = mimetype
	item.modTime = modTime
	item.state = SKIPPED
	if metadata.WarrantsInspection(mimetype) {
		item.state = PENDING
	}
}

// claim moves the item from PENDING to EXTRACTING, returning
// false if the item was not PENDING.
func (item *Item) claim() bool {
	item.mu.Lock()
	defer item.mu.Unlock()

	if item.state != PENDING {
		return false
	}

	item.state = EXTRACTING
	return true
}

func (item *Item) String() string {
	return fmt.Sprintf("Item{ID=%s Location=%s State=%s}", item.ID, item.location, item.State())
}

// AddAttribute stores the attribute provided. An attribute which is
// already present has its value replaced in place.
func (res *Resource) AddAttribute(attr metadata.ResourceAttribute, value string) {
	res.mu.Lock()
	defer res.mu.Unlock()

	for i, entry := range res.attributes {
		if entry.Attribute == attr {
			res.attributes[i].Value = value
			return
		}
	}

	res.attributes = append(res.attributes, AttributeEntry{attr, value})
}

func (res *Resource) Attribute(attr metadata.ResourceAttribute) (string, bool) {
	res.mu.RLock()
	defer res.mu.RUnlock()

	for _, entry := range res.attributes {
		if entry.Attribute == attr {
			return entry.Value, true
		}
	}

	return "", false
}

// Attributes returns a copy of the resources attributes, in the
// order they were written.
func (res *Resource) Attributes() []AttributeEntry {
	res.mu.RLock()
	defer res.mu.RUnlock()

	out := make([]AttributeEntry, len(res.attributes))
	copy(out, res.attributes)
	return out
}
