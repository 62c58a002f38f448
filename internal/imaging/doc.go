// Package imaging provides the image operations around the text detector.
//
// It covers the detector's pre-processing (decoding, aspect-preserving
// resize onto a 32-aligned canvas, mean/variance normalisation) and the
// rendering of its results (JET heatmaps of score maps, polygon outlines,
// text labels, heatmap overlays and cropped regions for recognition).
// All operations work with standard Go image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and
// Y increases downward.
//
// # Pixel Format
//
// Images are handled as *image.NRGBA with every alpha value set to 255.
// Grayscale and paletted sources are expanded to three equal channels on
// load. Channel order is always RGB; no BGR conversion is ever needed.
//
// # Resizing
//
// ResizeAspectRatio mirrors the detector's training-time preprocessing:
//
//	target  = min(magRatio * max(w, h), squareSize)
//	ratio   = target / max(w, h)
//	resized = (int(w*ratio), int(h*ratio)), bilinear
//	canvas  = resized padded with black to multiples of 32
//	heatmap = canvas size / 2
//
// Detections found on the heatmap are mapped back to the source by
// multiplying coordinates by 2/ratio.
//
// # Normalisation
//
// NormalizeMeanVariance subtracts the ImageNet means (0.485, 0.456, 0.406)
// and divides by the deviations (0.229, 0.224, 0.225), both scaled by 255,
// and returns a channel-major tensor.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image
// operations are stateless and can be called concurrently on different
// images.
package imaging
