// Package server implements the MCP (Model Context Protocol) server for the
// CRAFT text detector.
//
// The server keeps one detector loaded for its whole lifetime, so clients
// pay the cost of reading the checkpoint once and then query any number of
// images.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_info: Dimensions and format of an image file
//   - text_detect: Word polygons in image coordinates, optionally recognised
//   - text_heatmap: Score maps rendered as a PNG
//   - text_region_crop: One detected word cropped out as a PNG
//
// # Image Caching
//
// Decoded images are cached by path and reused across tool calls. The
// cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(det, log)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
