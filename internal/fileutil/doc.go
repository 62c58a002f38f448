// Package fileutil lists input images and writes detection results.
//
// For an input named photo.png the result folder receives res_photo.txt
// (one polygon per line), res_photo.jpg (the input with polygons drawn) and
// res_photo_mask.jpg (the score heatmap), plus res_photo_overlay.jpg and
// res_photo.json when requested.
package fileutil
