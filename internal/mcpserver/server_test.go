package mcpserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/planservice"
	"github.com/starford/vitalplan/internal/testutil"
)

func testServer(t *testing.T, responses ...string) (*Server, *testutil.StubGenerator) {
	t.Helper()
	_, archive := testutil.TestArchive(t)
	gen := &testutil.StubGenerator{Responses: responses}
	svc := planservice.NewService(gen, testutil.TestDB(t), archive, nil, planservice.Options{})
	return New(svc, "test"), gen
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "generate_plan":
		result, err = srv.generatePlan(ctx, req)
	case "get_plan":
		result, err = srv.getPlan(ctx, req)
	case "delete_plan":
		result, err = srv.deletePlan(ctx, req)
	case "get_plan_contract":
		result, err = srv.getPlanContract(ctx, req)
	case "list_rejections":
		result, err = srv.listRejections(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGenerateAndGetPlan(t *testing.T) {
	doc := testutil.Document(models.MustSchema(models.Exercise), 1)
	srv, gen := testServer(t, doc)

	r := callTool(t, srv, "generate_plan", map[string]interface{}{
		"domain":      "workout",
		"owner_id":    float64(7),
		"preferences": "knee friendly",
	})
	if r.IsError {
		t.Fatalf("generate failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"records": 21`) {
		t.Errorf("generate result = %s", resultText(r))
	}
	if !strings.Contains(gen.Prompts[0], "knee friendly") {
		t.Error("preferences not passed to the prompt")
	}

	r = callTool(t, srv, "get_plan", map[string]interface{}{"domain": "exercise", "owner_id": float64(7)})
	if r.IsError || !strings.Contains(resultText(r), `"Monday Cardio 1"`) {
		t.Errorf("get result = %s", resultText(r))
	}
}

func TestGetPlanMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_plan", map[string]interface{}{"domain": "nutrition", "owner_id": float64(1)})
	if !r.IsError {
		t.Error("expected error for missing plan")
	}
}

func TestGeneratePlan_Rejected(t *testing.T) {
	srv, _ := testServer(t, `{"Monday": {}}`)
	r := callTool(t, srv, "generate_plan", map[string]interface{}{"domain": "nutrition", "owner_id": float64(4)})
	if !r.IsError || !strings.Contains(resultText(r), "shape_invalid") {
		t.Fatalf("result = %s", resultText(r))
	}

	r = callTool(t, srv, "list_rejections", map[string]interface{}{"domain": "nutrition", "owner_id": float64(4)})
	if !strings.Contains(resultText(r), "nutrition/4/") {
		t.Errorf("rejections = %q", resultText(r))
	}
}

func TestGeneratePlan_Unavailable(t *testing.T) {
	srv, gen := testServer(t)
	gen.Err = errors.New("timeout")
	r := callTool(t, srv, "generate_plan", map[string]interface{}{"domain": "nutrition", "owner_id": float64(4)})
	if !r.IsError || !strings.Contains(resultText(r), "(retryable)") {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestDeletePlan(t *testing.T) {
	srv, _ := testServer(t, testutil.Document(models.MustSchema(models.Nutrition), 1))
	_ = callTool(t, srv, "generate_plan", map[string]interface{}{"domain": "diet", "owner_id": float64(2)})

	r := callTool(t, srv, "delete_plan", map[string]interface{}{"domain": "nutrition", "owner_id": float64(2)})
	if text := resultText(r); text != "deleted: 28" {
		t.Errorf("delete result = %q", text)
	}
	r = callTool(t, srv, "delete_plan", map[string]interface{}{"domain": "nutrition", "owner_id": float64(2)})
	if text := resultText(r); text != "deleted: 0" {
		t.Errorf("second delete result = %q", text)
	}
}

func TestInvalidArguments(t *testing.T) {
	srv, _ := testServer(t)
	cases := []map[string]interface{}{
		{"domain": "sleep", "owner_id": float64(1)},
		{"domain": "nutrition"},
		{"domain": "nutrition", "owner_id": float64(0)},
		{"domain": "nutrition", "owner_id": 1.5},
		{"owner_id": float64(1)},
	}
	for _, args := range cases {
		if r := callTool(t, srv, "get_plan", args); !r.IsError {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_plan_contract", map[string]interface{}{"domain": "nutrition"})
	text := resultText(r)
	if !strings.Contains(text, "Categories: breakfast, lunch, dinner, snacks") || !strings.Contains(text, "Return ONLY valid JSON") {
		t.Errorf("contract = %s", text)
	}

	contents, err := srv.readContractResource(models.Exercise)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != "vitalplan://contract/exercise" || !strings.Contains(tc.Text, "exercise_name") {
		t.Errorf("resource = %+v", contents[0])
	}
}
