package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const (
	FileSearchToolName     = "file_search"
	FileSearchDefaultFiles = 3
	FileSearchMaxFiles     = 5
)

// FileSearcher is the part of the file index the chat service needs.
type FileSearcher interface {
	Len() int
	ContextFor(query string, maxFiles int) string
}

type fileSearchTool struct {
	index FileSearcher
}

type fileSearchParams struct {
	Query    string `json:"query"`
	MaxFiles int    `json:"max_files,omitempty"`
}

// NewFileSearchTool exposes the uploaded-document index to the model.
func NewFileSearchTool(index FileSearcher) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: FileSearchToolName,
		Desc: "Search the teaching documents the user has uploaded. " +
			"Returns the summaries of the most relevant files for the given query.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Keywords or a short question describing what to look for.",
				Type:     schema.String,
				Required: true,
			},
			"max_files": {
				Desc:     "Maximum number of files to return (default 3, max 5).",
				Type:     schema.Integer,
				Required: false,
			},
		}),
	}
	return utils.NewTool(info, (&fileSearchTool{index: index}).run)
}

func (t *fileSearchTool) run(_ context.Context, params *fileSearchParams) (string, error) {
	if params == nil {
		return "", errors.New("missing search parameters")
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}
	maxFiles := params.MaxFiles
	if maxFiles <= 0 {
		maxFiles = FileSearchDefaultFiles
	}
	if maxFiles > FileSearchMaxFiles {
		maxFiles = FileSearchMaxFiles
	}
	result := t.index.ContextFor(query, maxFiles)
	if result == "" {
		return "No uploaded documents match the query.", nil
	}
	return result, nil
}
