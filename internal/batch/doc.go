// Package batch runs the detector over a folder of images.
package batch
