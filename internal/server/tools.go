package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"toolgate/internal/auth"
	"toolgate/internal/dispatcher"
	"toolgate/pkg/logging"
)

// createServerTools converts the dispatcher's registration table into MCP
// server tools. Each handler routes through the dispatcher (and therefore the
// authorization gate); a blocked call is translated into a user-facing
// "please authorize" result carrying the connect URL for its elicitation id.
func createServerTools(d *dispatcher.Dispatcher, baseURL string) []mcpserver.ServerTool {
	methods := d.Methods()
	tools := make([]mcpserver.ServerTool, 0, len(methods))

	for _, m := range methods {
		tools = append(tools, mcpserver.ServerTool{
			Tool: mcp.Tool{
				Name:        m.Name,
				Description: m.Description,
				InputSchema: convertToMCPSchema(m.Args),
			},
			Handler: createToolHandler(d, m.Name, baseURL),
		})
	}

	return tools
}

// createToolHandler wraps one dispatcher method in an MCP-compatible handler.
func createToolHandler(d *dispatcher.Dispatcher, methodName, baseURL string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			}
		}

		result, err := d.RunMethod(ctx, methodName, args)
		if err != nil {
			var authRequired *auth.AuthorizationRequiredError
			if errors.As(err, &authRequired) {
				connectURL := fmt.Sprintf("%s/auth/connect/%s", baseURL, authRequired.ElicitationID)
				return mcp.NewToolResultError(fmt.Sprintf(
					"Authorization is required. Please authorize at %s and then retry the request.", connectURL)), nil
			}

			logging.Error("ToolHandler", err, "Tool execution failed for %s", methodName)
			return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %v", err)), nil
		}

		return convertToMCPResult(result), nil
	}
}

// convertToMCPSchema converts dispatcher arg metadata to the JSON Schema
// format expected by MCP clients.
func convertToMCPSchema(args []dispatcher.ArgMetadata) mcp.ToolInputSchema {
	properties := make(map[string]interface{})
	required := []string{}

	for _, arg := range args {
		propSchema := map[string]interface{}{
			"type":        arg.Type,
			"description": arg.Description,
		}
		if arg.Default != nil {
			propSchema["default"] = arg.Default
		}
		properties[arg.Name] = propSchema

		if arg.Required {
			required = append(required, arg.Name)
		}
	}

	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// convertToMCPResult converts a dispatcher result to MCP format. String
// content becomes text content directly; everything else is marshaled to
// JSON.
func convertToMCPResult(result *dispatcher.Result) *mcp.CallToolResult {
	mcpContent := make([]mcp.Content, len(result.Content))

	for i, content := range result.Content {
		if text, ok := content.(string); ok {
			mcpContent[i] = mcp.NewTextContent(text)
		} else {
			jsonBytes, _ := json.Marshal(content)
			mcpContent[i] = mcp.NewTextContent(string(jsonBytes))
		}
	}

	return &mcp.CallToolResult{
		Content: mcpContent,
		IsError: result.IsError,
	}
}
