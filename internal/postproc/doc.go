// Package postproc turns CRAFT score maps into word boxes and polygons.
//
// The region and affinity maps are thresholded into a word mask, split into
// connected components, and each component is fitted with a rotated
// rectangle. Optionally a curved polygon is fitted inside each rectangle by
// sampling the component mask column by column. All geometry is in
// score-map pixels until AdjustResultCoordinates maps it back to the input
// image.
package postproc
