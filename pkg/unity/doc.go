// Package unity manages unities: physical locations of the publisher, each
// with an optional banner image stored through the upload pipeline.
//
// The banner is persisted as an upload location key (collection/name). The
// service derives its public URL on every read, so changing the upload base
// URL never requires rewriting rows.
package unity
