// Package detection runs the CRAFT text detector on images.
//
// A Detector ties together the stages of a run:
//
//  1. Resize: scale the image onto a 32-aligned canvas (imaging.ResizeAspectRatio)
//  2. Normalise: ImageNet mean/variance, channel-major tensor
//  3. Forward: region (score_text) and affinity (score_link) maps at half
//     resolution, with score_link replaced by the refiner output when one is loaded
//  4. Post-process: boxes and polygons from the score maps (postproc.GetDetBoxes)
//  5. Adjust: map coordinates back to the source image by 2/ratio
//  6. Render: the score_text | score_link heatmap
//
// Predict adds loading, optional recognition and writing the result files.
//
// # Coordinate System
//
// All returned coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Polygons start at the top-left of the word and run clockwise. Words for
// which no polygon could be fitted carry their four-corner box instead.
//
// # Concurrency
//
// TestNet and Predict may be called from several goroutines; the networks
// are read-only during inference.
package detection
