package convert

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "convert-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	svc := New(Config{})
	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_Inspect(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "figma_inspect", map[string]any{
		"payload": map[string]any{
			"tree": map[string]any{
				"kind": "container",
				"children": []any{
					map[string]any{"kind": "text", "characters": "hello"},
				},
			},
		},
	})

	var sum Summary
	if err := json.Unmarshal([]byte(text), &sum); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sum.Nodes != 2 {
		t.Errorf("Nodes = %d, want 2", sum.Nodes)
	}
	if sum.Depth != 2 {
		t.Errorf("Depth = %d, want 2", sum.Depth)
	}
}

func TestMCP_Convert(t *testing.T) {
	session := mcpSession(t)

	payload, err := json.Marshal(pagePayload())
	if err != nil {
		t.Fatal(err)
	}
	text := mcpCallTool(t, session, "figma_convert", map[string]any{
		"payload": json.RawMessage(payload),
	})

	var resp struct {
		Patterns struct {
			RepeatedPatterns int `json:"repeatedPatterns"`
		} `json:"patterns"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Patterns.RepeatedPatterns != 1 {
		t.Errorf("RepeatedPatterns = %d, want 1", resp.Patterns.RepeatedPatterns)
	}
}
