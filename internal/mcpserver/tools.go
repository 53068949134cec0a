package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Vigil MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetSessionReport = mcp.NewTool("get_session_report",
	mcp.WithDescription(
		"Get the integrity score report for a proctored interview session. "+
			"Returns the score (0-100), risk tier (green/yellow/red), and a "+
			"violation breakdown by kind. Reports on active sessions are "+
			"provisional; closed sessions return the persisted final verdict."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("The session ID (e.g. 'sess_1a2b...')")),
)

var ToolListViolations = mcp.NewTool("list_violations",
	mcp.WithDescription(
		"List the recorded violations for a session in chronological order. "+
			"Each entry has a kind (multiple_faces, face_missing, tab_switch, "+
			"prolonged_silence, face_orientation), a human-readable detail, and "+
			"a timestamp. Use this to explain why a session scored the way it did."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("The session ID (e.g. 'sess_1a2b...')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of violations to return (default 100)")),
)

var ToolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription(
		"Get the live state of a monitoring session: whether it is still "+
			"active, when it started and ended, and its violation count so far."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("The session ID (e.g. 'sess_1a2b...')")),
)

var ToolListCandidateSessions = mcp.NewTool("list_candidate_sessions",
	mcp.WithDescription(
		"List a candidate's interview sessions, newest first. "+
			"Shows each session's final score and risk tier so you can spot "+
			"patterns across multiple interviews."),
	mcp.WithString("candidate_id",
		mcp.Required(),
		mcp.Description("The candidate ID (e.g. 'cand_1a2b...')")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of sessions to return (default 20)")),
)

var ToolGetCandidate = mcp.NewTool("get_candidate",
	mcp.WithDescription(
		"Look up a candidate's directory entry (name and email) by ID."),
	mcp.WithString("candidate_id",
		mcp.Required(),
		mcp.Description("The candidate ID (e.g. 'cand_1a2b...')")),
)

var ToolCloseSession = mcp.NewTool("close_session",
	mcp.WithDescription(
		"Close an active monitoring session and compute its final verdict. "+
			"Closing is idempotent: closing an already-closed session returns "+
			"the same persisted result. Use with care — a closed session "+
			"rejects all further observations."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("The session ID (e.g. 'sess_1a2b...')")),
)
