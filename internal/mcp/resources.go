package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) disciplines(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	disciplines, err := h.ds.GetDisciplines(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(disciplines)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
