// Package ingest provides the photo-specific parts of a photoflow run: the
// directory Source, the Output sink and the built-in stages, registered by
// name through NewRegistry.
//
// Built-in stages:
//
//   - landscape: keeps photos wider than tall
//   - portrait: keeps photos taller than wide
//   - date: keeps photos whose EXIF capture date lies in the configured range
//   - dimensions: records width, height and format
//   - release: drops cached content to bound memory
//   - extra-formats: lets the source pick up .bmp, .gif and .webp files
package ingest
