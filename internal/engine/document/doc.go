// Package document provides the paragraph-based document model used by the
// annotation engine.
//
// A Document is an ordered list of paragraphs, each with a stable identity
// that survives edits to other parts of the document. All mutation goes
// through transactions: a Transaction carries the ordered edit steps that
// were applied plus the resulting document version, and exposes a position
// map so that anything anchored to the old coordinates (decorations,
// suggestion anchors, pending analysis results) can be carried forward or
// recognized as stale.
//
// The document is not safe for concurrent mutation. The engine applies all
// transactions from a single goroutine; background analysis only ever sees
// immutable text snapshots taken at dispatch time.
package document
