// Package mediastore owns the uploads directory: generated file names, the
// MIME allow-list, per-video frame directories, and the mapping between
// filesystem paths and public /uploads URLs.
package mediastore
