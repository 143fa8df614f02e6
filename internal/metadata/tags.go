package metadata

import "github.com/hbomb79/Tome/pkg/logger"

type textField struct {
	key   MetadataKey
	value string
}

type numericField struct {
	key   MetadataKey
	value int
}

// addDescriptiveTags copies the container-level tags on to the target. Each
// field is independent: an empty string or non-positive number skips only
// that field.
func addDescriptiveTags(target Target, container *Container, converter Converter) {
	for _, field := range []textField{
		{TitleKey, container.Title},
		{ArtistKey, container.Author},
		{AlbumKey, container.Album},
	} {
		addTextTag(target, converter, field)
	}

	addNumericTag(target, numericField{DateKey, container.Year})

	for _, field := range []textField{
		{GenreKey, container.Genre},
		{DescriptionKey, container.Comment},
	} {
		addTextTag(target, converter, field)
	}

	addNumericTag(target, numericField{TrackNumberKey, container.Track})
}

func addTextTag(target Target, converter Converter, field textField) {
	if field.value == "" {
		log.Emit(logger.VERBOSE, "Skipping metadata %s: empty\n", field.key)
		return
	}

	converted, err := converter.Convert(field.value)
	if err != nil {
		log.Emit(logger.VERBOSE, "Skipping metadata %s: charset conversion failed: %v\n", field.key, err)
		return
	}

	log.Emit(logger.VERBOSE, "Added metadata %s: %s\n", field.key, converted)
	target.SetMetadata(field.key, converted)
}

func addNumericTag(target Target, field numericField) {
	formatted, ok := formatPositive(field.value)
	if !ok {
		log.Emit(logger.VERBOSE, "Skipping metadata %s: %d is not positive\n", field.key, field.value)
		return
	}

	log.Emit(logger.VERBOSE, "Added metadata %s: %s\n", field.key, formatted)
	target.SetMetadata(field.key, formatted)
}
