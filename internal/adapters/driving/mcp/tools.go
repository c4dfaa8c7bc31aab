package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AnswerContextInput is the input schema for the answer_context tool.
type AnswerContextInput struct {
	Question string `json:"question" jsonschema:"the user question to gather context for"`
}

// AnswerContextOutput is the output schema for the answer_context tool.
type AnswerContextOutput struct {
	Context    string            `json:"context"`
	References []ReferenceOutput `json:"references,omitempty"`
	Empty      bool              `json:"empty"`
}

// ReferenceOutput is one citable source backing the returned context.
type ReferenceOutput struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "answer_context",
		Description: "Retrieve grounded, citable context for answering a question from the configured knowledge sources",
	}, s.handleAnswerContext)
}

// handleAnswerContext handles the answer_context tool invocation.
func (s *Server) handleAnswerContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnswerContextInput,
) (*mcp.CallToolResult, AnswerContextOutput, error) {
	result, err := s.ports.Context.Retrieve(ctx, input.Question)
	if err != nil {
		return nil, AnswerContextOutput{}, err
	}

	output := AnswerContextOutput{Empty: result.Empty()}
	if output.Empty {
		return nil, output, nil
	}

	output.Context = result.Content
	if result.Prefix != "" && result.Content != "" {
		output.Context = result.Prefix + "\n" + result.Content
	}

	output.References = make([]ReferenceOutput, len(result.References))
	for i, ref := range result.References {
		output.References[i] = ReferenceOutput{
			ID:    ref.ID,
			Title: ref.Title,
			Link:  ref.Link,
		}
	}

	return nil, output, nil
}
