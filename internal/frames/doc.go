// Package frames samples still images from uploaded videos.
//
// Three strategies are available behind the Extractor interface: a local
// ffmpeg run sized by the ffprobe duration, a remote HTTP extractor, and a
// disabled extractor for detectors that consume the raw video.
package frames
