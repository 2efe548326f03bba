// Package recognition turns access-point photos into identifying signals:
// scannable codes that may carry an item reference, and confidence-ranked
// tags for text search.
//
// VisionClient talks to the recognition service over HTTP. PrepareImage
// validates and downscales uploads before they are sent.
package recognition
