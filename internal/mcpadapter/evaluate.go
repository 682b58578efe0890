package mcpadapter

import (
	"context"

	"github.com/arbes-ai/evaluator/internal/engine"
	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EvaluateInput is the MCP tool input schema (matches HTTP API field names).
type EvaluateInput struct {
	DocumentID   string `json:"document_id" jsonschema:"unique document identifier"`
	DocumentText string `json:"document_text" jsonschema:"document text to evaluate"`
	SourceName   string `json:"source_name,omitempty" jsonschema:"optional source label, defaults to document_id"`
}

// NewEvaluateHandler returns a tool handler bound to the orchestrator.
// Pass the returned function to mcp.AddTool.
func NewEvaluateHandler(orch *engine.Orchestrator) func(context.Context, *mcp.CallToolRequest, EvaluateInput) (*mcp.CallToolResult, models.CombinedEvaluation, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input EvaluateInput) (*mcp.CallToolResult, models.CombinedEvaluation, error) {
		return EvaluateDocument(ctx, orch, req, input)
	}
}

// EvaluateDocument runs the full evaluation pipeline over the document text.
func EvaluateDocument(
	ctx context.Context,
	orch *engine.Orchestrator,
	req *mcp.CallToolRequest,
	input EvaluateInput,
) (*mcp.CallToolResult, models.CombinedEvaluation, error) {
	source := input.SourceName
	if source == "" {
		source = input.DocumentID
	}

	combined, err := orch.EvaluateText(ctx, input.DocumentText, source)
	if err != nil {
		return nil, models.CombinedEvaluation{}, err
	}
	return nil, combined, nil
}
