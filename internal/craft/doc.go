// Package craft loads and runs the CRAFT text detector and its link refiner.
//
// CRAFT (Character Region Awareness For Text detection) predicts two maps at
// half the input resolution: a region score giving the probability that a
// pixel lies at the centre of a character, and an affinity score giving the
// probability that it lies between two adjacent characters of one word.
// The optional refiner re-estimates the affinity map from the scores and the
// detector's last feature map, which produces better polygons for curved
// text.
//
// # Backends
//
// Two backends implement the Net and Refiner interfaces:
//
//   - Native: PyTorch checkpoints (".pth") are read with the checkpoint
//     package, key-remapped, and evaluated on the CPU with the tensor
//     package. Batch norms are folded into convolutions at load time.
//   - ONNX Runtime: exported models (".onnx") run through onnxruntime_go.
//     When CUDA is requested the CUDA execution provider is appended to the
//     session; if that fails the session falls back to the CPU.
//
// Requesting CUDA with a native checkpoint logs a warning and runs on the
// CPU.
//
// # Layout
//
// Both networks are described as tables of named sequential blocks that
// mirror the module hierarchy of the checkpoints, so a parameter such as
// "basenet.slice5.1.weight" is found by concatenating the block prefix and
// the module index.
package craft
