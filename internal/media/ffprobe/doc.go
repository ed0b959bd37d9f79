// Package ffprobe wraps the ffprobe binary and decodes its JSON report into the
// container and stream fields the frame extractor needs.
package ffprobe
