package metadata

import "context"

type (
	// MediaProber opens media containers for inspection. Implementations
	// are expected to have their diagnostic output configured (typically
	// discarded) before being handed to an Extractor; the extractor
	// never touches a probers diagnostic sink.
	MediaProber interface {
		// Open recognises and opens the container at the path provided. An
		// error is returned if the file cannot be read or is not a supported
		// container. A successfully opened handle MUST be closed.
		Open(ctx context.Context, path string) (ProbeHandle, error)
	}

	// ProbeHandle is exclusively owned by a single extraction and must
	// not be retained after Close.
	ProbeHandle interface {
		// ResolveStreams populates the stream information of the
		// container, returning an error if it cannot be determined.
		ResolveStreams() error

		// Container returns the descriptor for the open container. Streams
		// are only populated after a successful call to ResolveStreams.
		Container() *Container

		// Close releases all resources held by the handle.
		Close() error
	}

	// Converter normalises text read from a container in to
	// the catalogs canonical text encoding.
	Converter interface {
		Convert(string) (string, error)
	}

	// Resource is a renderable resource of a catalog item which
	// technical attributes can be attached to.
	Resource interface {
		AddAttribute(ResourceAttribute, string)
	}

	// Target is the catalog item being populated.
	Target interface {
		Location() string
		SetMetadata(MetadataKey, string)

		// Resource returns the resource at the index provided, or
		// nil if no such resource exists.
		Resource(int) Resource
	}
)
