package items

import (
	"errors"

	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/api/util"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/metadata"
)

type (
	// Dto is the response used by endpoints that return
	// catalog items (e.g., list, get)
	Dto struct {
		ID        uuid.UUID     `json:"id"`
		Location  string        `json:"location"`
		Mimetype  string        `json:"mimetype"`
		State     StateDto      `json:"state"`
		Trouble   *TroubleDto   `json:"trouble,omitempty"`
		Metadata  []EntryDto    `json:"metadata"`
		Resources []ResourceDto `json:"resources"`
	}

	// EntryDto is a single metadata value or resource attribute. Both
	// the canonical key and the UPnP property it maps to are provided.
	EntryDto struct {
		Key   string `json:"key"`
		UPnP  string `json:"upnp"`
		Value string `json:"value"`
	}

	ResourceDto struct {
		Index      int        `json:"index"`
		Attributes []EntryDto `json:"attributes"`
	}

	TroubleDto struct {
		Stage   string `json:"stage,omitempty"`
		Message string `json:"message"`
	}

	StateDto string
)

const (
	PENDING    StateDto = "PENDING"
	EXTRACTING StateDto = "EXTRACTING"
	COMPLETE   StateDto = "COMPLETE"
	FAILED     StateDto = "FAILED"
	SKIPPED    StateDto = "SKIPPED"
	HELD       StateDto = "HELD"
)

// NewDto creates a Dto using the catalog Item model.
func NewDto(item *catalog.Item) *Dto {
	resources := item.Resources()
	resourceDtos := make([]ResourceDto, 0, len(resources))
	for idx, res := range resources {
		resourceDtos = append(resourceDtos, ResourceDto{
			Index:      idx,
			Attributes: util.ApplyConversion(res.Attributes(), attributeToDto),
		})
	}

	return &Dto{
		ID:        item.ID,
		Location:  item.Location(),
		Mimetype:  item.Mimetype(),
		State:     StateModelToDto(item.State()),
		Trouble:   troubleToDto(item.Trouble()),
		Metadata:  util.ApplyConversion(item.Metadata(), metadataToDto),
		Resources: resourceDtos,
	}
}

func metadataToDto(entry catalog.MetadataEntry) EntryDto {
	return EntryDto{Key: entry.Key.String(), UPnP: entry.Key.UPnP(), Value: entry.Value}
}

func attributeToDto(entry catalog.AttributeEntry) EntryDto {
	return EntryDto{Key: entry.Attribute.String(), UPnP: entry.Attribute.UPnP(), Value: entry.Value}
}

func troubleToDto(err error) *TroubleDto {
	if err == nil {
		return nil
	}

	trouble := &TroubleDto{Message: err.Error()}
	var probeErr *metadata.ProbeError
	if errors.As(err, &probeErr) {
		switch probeErr.Stage {
		case metadata.OpenStage:
			trouble.Stage = "OPEN"
		case metadata.StreamStage:
			trouble.Stage = "STREAMS"
		}
	}

	return trouble
}

func StateModelToDto(state catalog.ItemState) StateDto {
	switch state {
	case catalog.PENDING:
		return PENDING
	case catalog.EXTRACTING:
		return EXTRACTING
	case catalog.COMPLETE:
		return COMPLETE
	case catalog.FAILED:
		return FAILED
	case catalog.SKIPPED:
		return SKIPPED
	case catalog.HELD:
		return HELD
	}

	return StateDto(state.String())
}
