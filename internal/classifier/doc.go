// Package classifier decides which images contain a target subject.
//
// The Pipeline fans a batch of image URLs out to a Classifier under a fixed
// concurrency cap. Classification failures of any kind (fetch errors, oversized
// images, timeouts, classifier errors, panics) are logged, counted and resolved to
// a negative result for that image; they never fail the batch.
package classifier
