// Package timing assembles bypass streams: per-channel pulse words stamped
// with start times and merged into one causally ordered word list. It also
// owns the per-channel trigger delay compensation.
package timing
