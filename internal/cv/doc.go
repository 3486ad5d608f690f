// Package cv binds the OpenCV capture and writer APIs (via gocv) to the
// media.Source and media.Sink contracts. Build with the nocv tag to produce a
// binary without OpenCV; the camera and writer then fail at Open.
package cv
