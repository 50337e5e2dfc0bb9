// Package anonymize strips secrets and PII from problem signatures and
// solution payloads before they are encrypted or written to disk.
//
// Every persisted signature and solution passes through this package exactly
// once on the store's write path, so the pattern store never holds raw
// credentials by construction.
package anonymize
