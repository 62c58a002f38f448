// Package report charts the per-image processing times of a batch run.
package report
