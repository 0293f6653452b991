// Package mcpserver exposes the backend endpoints as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/api"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/config"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/logging"
)

// Name is the MCP server name.
const Name = "ttsdesk"

// Tools serves MCP tool calls with an API client.
type Tools struct {
	client   *api.Client
	defaults config.DefaultsConfig
	logger   *slog.Logger
}

// NewTools creates the tool handlers.
func NewTools(client *api.Client, defaults config.DefaultsConfig) *Tools {
	return &Tools{
		client:   client,
		defaults: defaults,
		logger:   logging.WithComponent("mcp"),
	}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(Name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("suggest_topics",
		mcp.WithDescription("Suggest up to five conversation topics for a subject."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("What the conversation should be about")),
		mcp.WithString("model", mcp.Description("Model profile"), mcp.Enum(config.Models...)),
		mcp.WithString("specialist", mcp.Description("Specialist profile"), mcp.Enum(config.Specialists...)),
		mcp.WithString("lang", mcp.Description("Language of the topics"), mcp.Enum(config.Languages...)),
	), t.SuggestTopics)

	s.AddTool(mcp.NewTool("run_tts",
		mcp.WithDescription("Generate a spoken conversation for a topic and return its audio URL and transcript."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Selected topic")),
		mcp.WithString("model", mcp.Description("Model profile"), mcp.Enum(config.Models...)),
		mcp.WithString("specialist", mcp.Description("Specialist profile"), mcp.Enum(config.Specialists...)),
		mcp.WithArray("langs", mcp.Description("Languages to generate"), mcp.Items(map[string]any{"type": "string"})),
	), t.RunTTS)

	s.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Fetch the transcript of a generated conversation."),
		mcp.WithString("conversation_uuid", mcp.Required(), mcp.Description("Conversation identifier")),
	), t.GetConversation)

	s.AddTool(mcp.NewTool("latest_tts",
		mcp.WithDescription("Return the most recent generated audio and its transcript."),
	), t.LatestTTS)

	s.AddTool(mcp.NewTool("query_qdrant",
		mcp.WithDescription("Search the vector store."),
		mcp.WithString("query_text", mcp.Required(), mcp.Description("Search text")),
	), t.QueryQdrant)

	return s
}

// ServeStdio runs the server on stdin/stdout until the input closes.
func ServeStdio(t *Tools, version string) error {
	return server.ServeStdio(NewServer(t, version))
}

// SuggestTopics handles suggest_topics.
func (t *Tools) SuggestTopics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject, err := req.RequireString("subject")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := api.SuggestRequest{
		Model:      req.GetString("model", t.defaults.Model),
		Specialist: req.GetString("specialist", t.defaults.Specialist),
		Lang:       req.GetString("lang", t.defaults.Lang),
		Subject:    strings.TrimSpace(subject),
	}
	if err := body.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tk := t.client.Begin(ctx, api.SlotSuggest)
	defer t.client.Release(tk)

	resp, err := t.client.SuggestTopics(tk, body)
	if err != nil {
		return t.toolError("suggest_topics", err), nil
	}
	topics := resp.Topics
	if len(topics) > 5 {
		topics = topics[:5]
	}
	if len(topics) == 0 {
		return mcp.NewToolResultText("No topics suggested"), nil
	}
	return mcp.NewToolResultText(strings.Join(topics, "\n")), nil
}

// RunTTS handles run_tts.
func (t *Tools) RunTTS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := req.RequireString("topic")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := api.RunRequest{
		Model:         req.GetString("model", t.defaults.Model),
		Specialist:    req.GetString("specialist", t.defaults.Specialist),
		Langs:         req.GetStringSlice("langs", t.defaults.Langs),
		SelectedTopic: strings.TrimSpace(topic),
	}
	if err := body.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tk := t.client.Begin(ctx, api.SlotRun)
	defer t.client.Release(tk)

	resp, err := t.client.RunTTS(tk, body)
	if err != nil {
		return t.toolError("run_tts", err), nil
	}

	var b strings.Builder
	if out := strings.TrimSpace(resp.Output); out != "" {
		b.WriteString(out)
		b.WriteString("\n\n")
	}

	res, err := t.client.ResolveAudio(tk, resp)
	switch {
	case errors.Is(err, api.ErrAudioNotFound):
		b.WriteString("Audio: not found\n")
	case err != nil:
		return t.toolError("run_tts", err), nil
	default:
		fmt.Fprintf(&b, "Audio: %s\n", res.URL)
		if len(res.Transcript) > 0 {
			b.WriteString("\n")
			b.WriteString(res.Transcript.String())
			b.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

// GetConversation handles get_conversation.
func (t *Tools) GetConversation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("conversation_uuid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := (api.ConversationRequest{ConversationUUID: id}).Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tk := t.client.Begin(ctx, api.SlotRun)
	defer t.client.Release(tk)

	resp, err := t.client.GetConversation(tk, id)
	if err != nil {
		return t.toolError("get_conversation", err), nil
	}
	return mcp.NewToolResultText(strings.TrimSpace(resp.Conversation)), nil
}

// LatestTTS handles latest_tts.
func (t *Tools) LatestTTS(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tk := t.client.Begin(ctx, api.SlotRun)
	defer t.client.Release(tk)

	resp, err := t.client.LatestTTS(tk)
	if err != nil {
		return t.toolError("latest_tts", err), nil
	}
	if resp.Audio == nil || resp.Audio.URL == "" {
		return mcp.NewToolResultText("No audio generated yet"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audio: %s", t.client.ResolveURL(resp.Audio.URL))
	for _, e := range resp.Transcript {
		fmt.Fprintf(&b, "\n%s: %s", e.Speaker, e.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// QueryQdrant handles query_qdrant.
func (t *Tools) QueryQdrant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("query_text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := api.QueryRequest{QueryText: strings.TrimSpace(text)}
	if err := body.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tk := t.client.Begin(ctx, api.SlotQuery)
	defer t.client.Release(tk)

	resp, err := t.client.QueryQdrant(tk, body)
	if err != nil {
		return t.toolError("query_qdrant", err), nil
	}
	return mcp.NewToolResultText(strings.TrimSpace(resp.Data)), nil
}

func (t *Tools) toolError(tool string, err error) *mcp.CallToolResult {
	t.logger.Warn("tool call failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}
