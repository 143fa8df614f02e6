package metadata

type (
	// MetadataKey is the canonical name of a descriptive tag
	// stored on a catalog item.
	MetadataKey int

	// ResourceAttribute is the canonical name of a technical
	// property attached to one of an items resources.
	ResourceAttribute int
)

const (
	TitleKey MetadataKey = iota
	ArtistKey
	AlbumKey
	DateKey
	GenreKey
	DescriptionKey
	TrackNumberKey
)

const (
	DurationAttribute ResourceAttribute = iota
	BitrateAttribute
	ResolutionAttribute
	SampleFrequencyAttribute
	AudioChannelCountAttribute
)

var (
	metadataKeyNames = []string{"TITLE", "ARTIST", "ALBUM", "DATE", "GENRE", "DESCRIPTION", "TRACKNUMBER"}
	metadataKeyUPnP  = []string{
		"dc:title",
		"upnp:artist",
		"upnp:album",
		"dc:date",
		"upnp:genre",
		"dc:description",
		"upnp:originalTrackNumber",
	}

	resourceAttributeNames = []string{"DURATION", "BITRATE", "RESOLUTION", "SAMPLEFREQUENCY", "NRAUDIOCHANNELS"}
	resourceAttributeUPnP  = []string{"duration", "bitrate", "resolution", "sampleFrequency", "nrAudioChannels"}
)

// AllMetadataKeys returns the closed vocabulary of descriptive
// tag keys, in the order the extractor writes them.
func AllMetadataKeys() []MetadataKey {
	return []MetadataKey{TitleKey, ArtistKey, AlbumKey, DateKey, GenreKey, DescriptionKey, TrackNumberKey}
}

// AllResourceAttributes returns the closed vocabulary of
// resource attribute keys, in the order the extractor writes them.
func AllResourceAttributes() []ResourceAttribute {
	return []ResourceAttribute{
		DurationAttribute,
		BitrateAttribute,
		ResolutionAttribute,
		SampleFrequencyAttribute,
		AudioChannelCountAttribute,
	}
}

func (k MetadataKey) valid() bool { return k >= TitleKey && k <= TrackNumberKey }

func (k MetadataKey) String() string {
	if !k.valid() {
		return "UNKNOWN"
	}

	return metadataKeyNames[k]
}

// UPnP returns the DIDL-Lite property name this key is published as.
func (k MetadataKey) UPnP() string {
	if !k.valid() {
		return ""
	}

	return metadataKeyUPnP[k]
}

func (a ResourceAttribute) valid() bool {
	return a >= DurationAttribute && a <= AudioChannelCountAttribute
}

func (a ResourceAttribute) String() string {
	if !a.valid() {
		return "UNKNOWN"
	}

	return resourceAttributeNames[a]
}

// UPnP returns the DIDL-Lite <res> attribute name for this attribute.
func (a ResourceAttribute) UPnP() string {
	if !a.valid() {
		return ""
	}

	return resourceAttributeUPnP[a]
}

// ParseMetadataKey is the inverse of MetadataKey.String.
func ParseMetadataKey(name string) (MetadataKey, bool) {
	for i, n := range metadataKeyNames {
		if n == name {
			return MetadataKey(i), true
		}
	}

	return 0, false
}

// ParseResourceAttribute is the inverse of ResourceAttribute.String.
func ParseResourceAttribute(name string) (ResourceAttribute, bool) {
	for i, n := range resourceAttributeNames {
		if n == name {
			return ResourceAttribute(i), true
		}
	}

	return 0, false
}
