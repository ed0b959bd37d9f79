// Package posts implements the post mutations exposed by the API: creating a
// post from an upload, toggling likes, and appending comments.
//
// Creating a video post leaves it in the processing state and wakes the
// analysis manager; the request returns before any analysis runs.
package posts
