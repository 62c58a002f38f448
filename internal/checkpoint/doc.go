// Package checkpoint reads serialized network weights into named float32 tensors.
//
// Checkpoints are PyTorch state dicts (the ".pth" files distributed with the
// pretrained CRAFT detector and its link refiner). Both the legacy pickle
// container and the newer zip container are supported.
//
// # Key Remapping
//
// Models trained under a distributed wrapper store every parameter with a
// "module." prefix. CopyStateDict removes that prefix so the weights can be
// bound to a plain network:
//
//	module.basenet.slice1.0.weight -> basenet.slice1.0.weight
//
// The decision is made once, from the first key, and then applied to every
// key, mirroring how the weights were produced.
//
// # Tensor Layout
//
// Tensors are returned contiguous in row-major order regardless of the
// strides recorded in the file. Convolution weights therefore have the layout
// [out_channels, in_channels, kernel_h, kernel_w].
package checkpoint
