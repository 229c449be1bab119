// Package segment provides the pure window arithmetic used to slice a
// recording into fixed-length, overlapping time windows and to map between
// 1-based segment indices and time ranges.
package segment
