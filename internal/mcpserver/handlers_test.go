package mcpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content")
	return tc.Text
}

// stubAPI returns handlers backed by a fake Vigil API.
func stubAPI(t *testing.T, routes map[string]string) *Handlers {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body, ok := routes[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"Session not found"}`))
	}))
	t.Cleanup(srv.Close)
	return NewHandlers(NewVigilClient(Config{APIURL: srv.URL}))
}

func TestHandleGetSessionReport(t *testing.T) {
	h := stubAPI(t, map[string]string{
		"/v1/sessions/sess_aaaaaaaaaaaaaaaaaaaaaaaa/report": `{
			"result": {
				"sessionId": "sess_aaaaaaaaaaaaaaaaaaaaaaaa",
				"score": 79,
				"riskTier": "yellow",
				"violationCount": 3,
				"byKind": {"multiple_faces": 1, "tab_switch": 1, "face_missing": 1},
				"provisional": false,
				"computedAt": "2026-03-10T14:20:00Z"
			}
		}`,
	})

	res, err := h.HandleGetSessionReport(context.Background(),
		callReq(map[string]any{"session_id": "sess_aaaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "Score: 79.00 / 100")
	assert.Contains(t, text, "Risk tier: yellow")
	assert.Contains(t, text, "Violations: 3")
	assert.Contains(t, text, "Status: final")
	assert.Contains(t, text, "multiple_faces: 1")
}

func TestHandleGetSessionReport_Provisional(t *testing.T) {
	h := stubAPI(t, map[string]string{
		"/v1/sessions/sess_aaaaaaaaaaaaaaaaaaaaaaaa/report": `{
			"result": {
				"sessionId": "sess_aaaaaaaaaaaaaaaaaaaaaaaa",
				"score": 92,
				"riskTier": "green",
				"violationCount": 1,
				"provisional": true
			}
		}`,
	})

	res, err := h.HandleGetSessionReport(context.Background(),
		callReq(map[string]any{"session_id": "sess_aaaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, err)

	assert.Contains(t, resultText(t, res), "PROVISIONAL")
}

func TestHandleGetSessionReport_MissingArg(t *testing.T) {
	h := stubAPI(t, nil)

	res, err := h.HandleGetSessionReport(context.Background(), callReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetSessionReport_NotFound(t *testing.T) {
	h := stubAPI(t, nil)

	res, err := h.HandleGetSessionReport(context.Background(),
		callReq(map[string]any{"session_id": "sess_bbbbbbbbbbbbbbbbbbbbbbbb"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Session not found")
}

func TestHandleListViolations(t *testing.T) {
	h := stubAPI(t, map[string]string{
		"/v1/sessions/sess_aaaaaaaaaaaaaaaaaaaaaaaa/violations": `{
			"violations": [
				{"id": "vio_1", "kind": "tab_switch", "detail": "page blur", "occurredAt": "2026-03-10T14:05:00Z"},
				{"id": "vio_2", "kind": "multiple_faces", "detail": "2 faces in frame", "occurredAt": "2026-03-10T14:07:00Z"}
			],
			"count": 2
		}`,
	})

	res, err := h.HandleListViolations(context.Background(),
		callReq(map[string]any{"session_id": "sess_aaaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "2 violation(s)")
	assert.Contains(t, text, "[tab_switch] page blur")
	assert.Contains(t, text, "[multiple_faces] 2 faces in frame")
}

func TestHandleListViolations_Empty(t *testing.T) {
	h := stubAPI(t, map[string]string{
		"/v1/sessions/sess_aaaaaaaaaaaaaaaaaaaaaaaa/violations": `{"violations": [], "count": 0}`,
	})

	res, err := h.HandleListViolations(context.Background(),
		callReq(map[string]any{"session_id": "sess_aaaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, err)

	assert.Contains(t, resultText(t, res), "No violations recorded")
}

func TestHandleListCandidateSessions(t *testing.T) {
	h := stubAPI(t, map[string]string{
		"/v1/candidates/cand_aaaaaaaaaaaaaaaaaaaaaaaa/sessions": `{
			"sessions": [
				{"id": "sess_2", "active": true, "startedAt": "2026-03-11T09:00:00Z"},
				{"id": "sess_1", "active": false, "startedAt": "2026-03-10T14:00:00Z",
				 "finalScore": 79, "riskTier": "yellow", "violationCount": 3}
			],
			"count": 2
		}`,
	})

	res, err := h.HandleListCandidateSessions(context.Background(),
		callReq(map[string]any{"candidate_id": "cand_aaaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "2 session(s)")
	assert.Contains(t, text, "Status: active")
	assert.Contains(t, text, "Score: 79.00 (yellow)")
}

func TestHandleGetSession(t *testing.T) {
	h := stubAPI(t, map[string]string{
		"/v1/sessions/sess_aaaaaaaaaaaaaaaaaaaaaaaa": `{
			"session": {"id": "sess_aaaaaaaaaaaaaaaaaaaaaaaa", "active": true, "violationCount": 1}
		}`,
	})

	res, err := h.HandleGetSession(context.Background(),
		callReq(map[string]any{"session_id": "sess_aaaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, err)

	assert.Contains(t, resultText(t, res), `"active": true`)
}

func TestHandleCloseSession(t *testing.T) {
	h := stubAPI(t, map[string]string{
		"/v1/sessions/sess_aaaaaaaaaaaaaaaaaaaaaaaa/close": `{
			"result": {
				"sessionId": "sess_aaaaaaaaaaaaaaaaaaaaaaaa",
				"score": 100,
				"riskTier": "green",
				"violationCount": 0,
				"provisional": false
			}
		}`,
	})

	res, err := h.HandleCloseSession(context.Background(),
		callReq(map[string]any{"session_id": "sess_aaaaaaaaaaaaaaaaaaaaaaaa"}))
	require.NoError(t, err)

	text := resultText(t, res)
	assert.Contains(t, text, "Session closed.")
	assert.Contains(t, text, "Risk tier: green")
}

func TestHandleGetCandidate_MissingArg(t *testing.T) {
	h := stubAPI(t, nil)

	res, err := h.HandleGetCandidate(context.Background(), callReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080"})
	require.NotNil(t, s)
}
