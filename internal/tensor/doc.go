// Package tensor implements the CPU operators needed to evaluate CRAFT and
// its link refiner without a deep learning runtime.
//
// Tensors hold a single image in channel-major order. Convolutions are
// lowered to matrix products with im2col and evaluated with the gonum BLAS;
// large inputs are processed in horizontal bands so the unrolled matrix
// never exceeds a fixed budget.
//
// Batch normalization is never evaluated on its own. Call
// Conv2d.FoldBatchNorm once after loading weights and the normalization is
// absorbed into the preceding convolution.
package tensor
