package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mvp-joe/storyindex/internal/storyindex"
)

// marshalToolResponse returns response as a JSON text result.
func marshalToolResponse(response any) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// indexErrorResult turns index errors a user can fix (broken links,
// duplicate ids, soft errors) into tool errors. Anything else is a system
// error.
func indexErrorResult(err error) (*mcp.CallToolResult, error) {
	var (
		link *storyindex.LinkError
		dup  *storyindex.DuplicateEntriesError
		soft *storyindex.SoftError
	)
	if errors.As(err, &link) || errors.As(err, &dup) || errors.As(err, &soft) ||
		errors.Is(err, storyindex.ErrNotInitialized) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}
