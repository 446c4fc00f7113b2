package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gurukul/internal/adapter/weaviate"
)

const retrievalTopK = 5

const supervisorPrompt = `You are the supervisor of a teaching assistant.
Classify the teacher's request and reply with exactly one word:
"research" when the request asks to explain, summarize, or answer questions
about subject matter or uploaded documents, "worksheet" when the request
asks to produce a worksheet, quiz, or exercise sheet, and "chat" for
anything else.`

const researcherPrompt = `You are ContentResearcher, a teaching assistant
that answers using the provided document excerpts. Ground your answer in
the excerpts when they are relevant and say so when they are not.`

const worksheetPrompt = `You are WorksheetGenerator. Produce a complete
worksheet in Markdown for the teacher's request, using the provided
document excerpts for subject matter. Output only the worksheet itself.`

// Generator produces a model completion for a system/user prompt pair.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Retriever finds document chunks relevant to the query within one chat.
type Retriever interface {
	Search(ctx context.Context, userID, chatID, query string, limit int) ([]weaviate.SearchResult, error)
}

// ContentSaver persists agent-generated artifacts so they show up in
// the chat's generated-content listing.
type ContentSaver interface {
	Save(ctx context.Context, userID, chatID, filename string, content []byte) error
}

// Checkpointer records the turn's final state under the chat's thread id.
type Checkpointer interface {
	Save(ctx context.Context, threadID string, state TurnState) error
}

// TurnState is the snapshot persisted after each agent turn.
type TurnState struct {
	LastUserMessage string    `bson:"last_user_message"`
	LastAgent       string    `bson:"last_agent"`
	ReplyCount      int       `bson:"reply_count"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// Runner executes agent turns. A single process-wide mutex serializes
// every turn across all users and chats: the checkpoint store assumes a
// single writer, so concurrent turns are not allowed even for unrelated
// chats.
type Runner struct {
	mu          sync.Mutex
	generator   Generator
	retriever   Retriever
	saver       ContentSaver
	checkpoints Checkpointer
}

func NewRunner(generator Generator, retriever Retriever, saver ContentSaver, checkpoints Checkpointer) *Runner {
	return &Runner{
		generator:   generator,
		retriever:   retriever,
		saver:       saver,
		checkpoints: checkpoints,
	}
}

// Run executes one turn: the supervisor routes the request to a
// subagent, the subagent produces the reply, and the turn's state is
// checkpointed. The returned messages include the supervisor's routing
// note followed by the subagent's reply.
func (r *Runner) Run(ctx context.Context, userID, chatID, message string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	route, err := r.generator.Generate(ctx, supervisorPrompt, message)
	if err != nil {
		return nil, fmt.Errorf("supervisor routing failed: %w", err)
	}
	route = strings.ToLower(strings.TrimSpace(route))

	var replies []Message
	switch {
	case strings.Contains(route, "worksheet"):
		replies, err = r.runWorksheet(ctx, userID, chatID, message)
	case strings.Contains(route, "research"):
		replies, err = r.runResearch(ctx, userID, chatID, message)
	default:
		replies, err = r.runChat(ctx, message)
	}
	if err != nil {
		return nil, err
	}

	state := TurnState{
		LastUserMessage: message,
		ReplyCount:      len(replies),
		UpdatedAt:       time.Now().UTC(),
	}
	if len(replies) > 0 {
		state.LastAgent = replies[len(replies)-1].Agent
	}
	if err := r.checkpoints.Save(ctx, ThreadID(userID, chatID), state); err != nil {
		slog.WarnContext(ctx, "failed to save agent checkpoint", "error", err)
	}
	return replies, nil
}

func (r *Runner) runResearch(ctx context.Context, userID, chatID, message string) ([]Message, error) {
	excerpts := r.gatherExcerpts(ctx, userID, chatID, message)

	answer, err := r.generator.Generate(ctx, researcherPrompt, excerpts+"\n\nRequest: "+message)
	if err != nil {
		return nil, fmt.Errorf("content research failed: %w", err)
	}

	return []Message{
		reply(AgentSupervisor, "Routing to ContentResearcher."),
		reply(AgentContentResearcher, answer),
	}, nil
}

func (r *Runner) runWorksheet(ctx context.Context, userID, chatID, message string) ([]Message, error) {
	excerpts := r.gatherExcerpts(ctx, userID, chatID, message)

	worksheet, err := r.generator.Generate(ctx, worksheetPrompt, excerpts+"\n\nRequest: "+message)
	if err != nil {
		return nil, fmt.Errorf("worksheet generation failed: %w", err)
	}

	filename := fmt.Sprintf("worksheet-%d.md", time.Now().UTC().Unix())
	if err := r.saver.Save(ctx, userID, chatID, filename, []byte(worksheet)); err != nil {
		return nil, fmt.Errorf("failed to save generated worksheet: %w", err)
	}

	return []Message{
		reply(AgentSupervisor, "Routing to WorksheetGenerator."),
		reply(AgentWorksheetGenerator, worksheet),
	}, nil
}

func (r *Runner) runChat(ctx context.Context, message string) ([]Message, error) {
	answer, err := r.generator.Generate(ctx, "You are a helpful teaching assistant.", message)
	if err != nil {
		return nil, fmt.Errorf("chat reply failed: %w", err)
	}
	return []Message{reply(AgentSupervisor, answer)}, nil
}

// gatherExcerpts is best effort: a failed retrieval degrades the answer
// instead of failing the turn.
func (r *Runner) gatherExcerpts(ctx context.Context, userID, chatID, message string) string {
	results, err := r.retriever.Search(ctx, userID, chatID, message, retrievalTopK)
	if err != nil {
		slog.WarnContext(ctx, "retrieval failed, answering without document context", "error", err)
		return "No document excerpts available."
	}
	if len(results) == 0 {
		return "No document excerpts available."
	}

	var b strings.Builder
	b.WriteString("Document excerpts:\n")
	for i, res := range results {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, res.ObjectKey, res.Content)
	}
	return b.String()
}

func reply(agentName, content string) Message {
	return Message{
		Role:      "assistant",
		Content:   content,
		Agent:     agentName,
		Timestamp: time.Now().UTC(),
	}
}
