// Package detection talks to the deepfake classifier collaborators.
//
// A Detector receives either the extracted frames or the raw video, depending
// on its configured input mode, and returns one verdict per frame. HTTP
// detectors receive a multipart upload; command detectors receive file paths
// as arguments and print the same JSON document on stdout.
package detection
