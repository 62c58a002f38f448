package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_info",
			Description: "Get the dimensions, format and colour model of an image file without running the detector.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "text_detect",
			Description: "Detect words in an image with the CRAFT text detector. Returns one polygon per word in image pixel coordinates, starting at the word's top-left corner and running clockwise.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"max_side": map[string]interface{}{
						"type":        "integer",
						"description": "Optional. Downscale the image so its longer side is at most this many pixels before detection. Coordinates are still reported for the original image.",
					},
					"recognize": map[string]interface{}{
						"type":        "boolean",
						"description": "Also read each word with Tesseract when the server has recognition enabled. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "text_heatmap",
			Description: "Render the detector's score maps as a base64-encoded PNG: region score on the left, affinity score on the right. With overlay, the region score is blended over the image instead.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Blend the region score over the image. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "text_region_crop",
			Description: "Detect words and return the bounding rectangle of one of them as a base64-encoded PNG, to zoom into text that needs detailed examination.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"index": map[string]interface{}{
						"type":        "integer",
						"description": "Zero-based index of the word in text_detect order",
					},
					"margin": map[string]interface{}{
						"type":        "integer",
						"description": "Extra pixels around the word. Default 4",
						"default":     4,
					},
				},
				"required": []string{"path", "index"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
