package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *VigilClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *VigilClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetSessionReport returns the score report for a session.
func (h *Handlers) HandleGetSessionReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	raw, err := h.client.GetReport(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get report: %v", err)), nil
	}

	text, err := formatReport(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse report: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListViolations returns a session's violation log.
func (h *Handlers) HandleListViolations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	limit := req.GetInt("limit", 100)

	raw, err := h.client.ListViolations(ctx, sessionID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list violations: %v", err)), nil
	}

	text, err := formatViolationList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse violations: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetSession returns the live state of a session.
func (h *Handlers) HandleGetSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	raw, err := h.client.GetSession(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get session: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleListCandidateSessions returns a candidate's session history.
func (h *Handlers) HandleListCandidateSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	candidateID := req.GetString("candidate_id", "")
	if candidateID == "" {
		return mcp.NewToolResultError("candidate_id is required"), nil
	}
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListCandidateSessions(ctx, candidateID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list sessions: %v", err)), nil
	}

	text, err := formatSessionList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse sessions: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetCandidate looks up a candidate directory entry.
func (h *Handlers) HandleGetCandidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	candidateID := req.GetString("candidate_id", "")
	if candidateID == "" {
		return mcp.NewToolResultError("candidate_id is required"), nil
	}

	raw, err := h.client.GetCandidate(ctx, candidateID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get candidate: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleCloseSession closes a session and returns the final verdict.
func (h *Handlers) HandleCloseSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	raw, err := h.client.CloseSession(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to close session: %v", err)), nil
	}

	text, err := formatReport(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse verdict: %v", err)), nil
	}

	return mcp.NewToolResultText("Session closed.\n\n" + text), nil
}

// --- Formatting helpers ---

type reportInfo struct {
	SessionID      string         `json:"sessionId"`
	Score          float64        `json:"score"`
	RiskTier       string         `json:"riskTier"`
	ViolationCount int            `json:"violationCount"`
	ByKind         map[string]int `json:"byKind"`
	Provisional    bool           `json:"provisional"`
	ComputedAt     string         `json:"computedAt"`
}

func formatReport(raw json.RawMessage) (string, error) {
	// The API wraps the report as {"result": {...}}
	var wrapper struct {
		Result *reportInfo `json:"result"`
	}
	var r reportInfo
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Result != nil {
		r = *wrapper.Result
	} else if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("unexpected report format")
	}

	var sb strings.Builder
	sb.WriteString("Session Report:\n")
	fmt.Fprintf(&sb, "  Session: %s\n", r.SessionID)
	fmt.Fprintf(&sb, "  Score: %.2f / 100\n", r.Score)
	fmt.Fprintf(&sb, "  Risk tier: %s\n", r.RiskTier)
	fmt.Fprintf(&sb, "  Violations: %d\n", r.ViolationCount)
	if r.Provisional {
		sb.WriteString("  Status: PROVISIONAL (session still active)\n")
	} else {
		sb.WriteString("  Status: final\n")
	}
	if len(r.ByKind) > 0 {
		sb.WriteString("  Breakdown:\n")
		for kind, count := range r.ByKind {
			fmt.Fprintf(&sb, "    %s: %d\n", kind, count)
		}
	}
	return sb.String(), nil
}

type violationInfo struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Detail     string `json:"detail"`
	OccurredAt string `json:"occurredAt"`
}

func formatViolationList(raw json.RawMessage) (string, error) {
	var resp struct {
		Violations []violationInfo `json:"violations"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected violations format")
	}

	if len(resp.Violations) == 0 {
		return "No violations recorded for this session.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d violation(s):\n\n", len(resp.Violations))
	for i, v := range resp.Violations {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, v.Kind, v.Detail)
		fmt.Fprintf(&sb, "   At: %s\n", v.OccurredAt)
	}
	return sb.String(), nil
}

type sessionInfo struct {
	ID             string   `json:"id"`
	Active         bool     `json:"active"`
	StartedAt      string   `json:"startedAt"`
	FinalScore     *float64 `json:"finalScore"`
	RiskTier       string   `json:"riskTier"`
	ViolationCount int      `json:"violationCount"`
}

func formatSessionList(raw json.RawMessage) (string, error) {
	var resp struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected sessions format")
	}

	if len(resp.Sessions) == 0 {
		return "No sessions found for this candidate.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d session(s), newest first:\n\n", len(resp.Sessions))
	for i, s := range resp.Sessions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s.ID)
		fmt.Fprintf(&sb, "   Started: %s\n", s.StartedAt)
		if s.Active {
			sb.WriteString("   Status: active\n")
		} else if s.FinalScore != nil {
			fmt.Fprintf(&sb, "   Score: %.2f (%s) | Violations: %d\n",
				*s.FinalScore, s.RiskTier, s.ViolationCount)
		}
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}
