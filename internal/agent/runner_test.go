package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gurukul/internal/adapter/weaviate"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Search(ctx context.Context, userID, chatID, query string, limit int) ([]weaviate.SearchResult, error) {
	args := m.Called(ctx, userID, chatID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]weaviate.SearchResult), args.Error(1)
}

type MockContentSaver struct {
	mock.Mock
}

func (m *MockContentSaver) Save(ctx context.Context, userID, chatID, filename string, content []byte) error {
	return m.Called(ctx, userID, chatID, filename, content).Error(0)
}

type MockCheckpointer struct {
	mock.Mock
}

func (m *MockCheckpointer) Save(ctx context.Context, threadID string, state TurnState) error {
	return m.Called(ctx, threadID, state).Error(0)
}

func TestThreadID(t *testing.T) {
	assert.Equal(t, "u1_c1", ThreadID("u1", "c1"))
}

func newTestRunner() (*Runner, *MockGenerator, *MockRetriever, *MockContentSaver, *MockCheckpointer) {
	generator := new(MockGenerator)
	retriever := new(MockRetriever)
	saver := new(MockContentSaver)
	checkpoints := new(MockCheckpointer)
	return NewRunner(generator, retriever, saver, checkpoints), generator, retriever, saver, checkpoints
}

func TestRun_ResearchRouteUsesRetrievedContext(t *testing.T) {
	runner, generator, retriever, _, checkpoints := newTestRunner()

	generator.On("Generate", mock.Anything, supervisorPrompt, "explain osmosis").Return("research", nil).Once()
	retriever.On("Search", mock.Anything, "u1", "c1", "explain osmosis", retrievalTopK).Return([]weaviate.SearchResult{
		{Content: "Osmosis is diffusion of water.", ObjectKey: "u1/c1/bio.pdf"},
	}, nil)
	generator.On("Generate", mock.Anything, researcherPrompt, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Osmosis is diffusion of water.")
	})).Return("Osmosis moves water across membranes.", nil).Once()
	checkpoints.On("Save", mock.Anything, "u1_c1", mock.Anything).Return(nil)

	replies, err := runner.Run(context.Background(), "u1", "c1", "explain osmosis")

	assert.NoError(t, err)
	assert.Len(t, replies, 2)
	assert.Equal(t, AgentSupervisor, replies[0].Agent)
	assert.Equal(t, AgentContentResearcher, replies[1].Agent)
	assert.Equal(t, "Osmosis moves water across membranes.", replies[1].Content)
	checkpoints.AssertExpectations(t)
}

func TestRun_WorksheetRouteSavesGeneratedContent(t *testing.T) {
	runner, generator, retriever, saver, checkpoints := newTestRunner()

	generator.On("Generate", mock.Anything, supervisorPrompt, mock.Anything).Return("worksheet", nil).Once()
	retriever.On("Search", mock.Anything, "u1", "c1", mock.Anything, retrievalTopK).Return([]weaviate.SearchResult{}, nil)
	generator.On("Generate", mock.Anything, worksheetPrompt, mock.Anything).Return("# Worksheet\n1. Question", nil).Once()
	saver.On("Save", mock.Anything, "u1", "c1", mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "worksheet-") && strings.HasSuffix(name, ".md")
	}), []byte("# Worksheet\n1. Question")).Return(nil)
	checkpoints.On("Save", mock.Anything, "u1_c1", mock.Anything).Return(nil)

	replies, err := runner.Run(context.Background(), "u1", "c1", "make a worksheet about cells")

	assert.NoError(t, err)
	assert.Len(t, replies, 2)
	assert.Equal(t, AgentWorksheetGenerator, replies[1].Agent)
	saver.AssertExpectations(t)
}

func TestRun_UnknownRouteFallsBackToChat(t *testing.T) {
	runner, generator, _, _, checkpoints := newTestRunner()

	generator.On("Generate", mock.Anything, supervisorPrompt, "hello").Return("chat", nil).Once()
	generator.On("Generate", mock.Anything, mock.Anything, "hello").Return("Hi there!", nil).Once()
	checkpoints.On("Save", mock.Anything, "u1_c1", mock.Anything).Return(nil)

	replies, err := runner.Run(context.Background(), "u1", "c1", "hello")

	assert.NoError(t, err)
	assert.Len(t, replies, 1)
	assert.Equal(t, AgentSupervisor, replies[0].Agent)
}

func TestRun_RetrievalFailureDegradesGracefully(t *testing.T) {
	runner, generator, retriever, _, checkpoints := newTestRunner()

	generator.On("Generate", mock.Anything, supervisorPrompt, mock.Anything).Return("research", nil).Once()
	retriever.On("Search", mock.Anything, "u1", "c1", mock.Anything, retrievalTopK).Return(nil, errors.New("index down"))
	generator.On("Generate", mock.Anything, researcherPrompt, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "No document excerpts available.")
	})).Return("Answering from general knowledge.", nil).Once()
	checkpoints.On("Save", mock.Anything, "u1_c1", mock.Anything).Return(nil)

	replies, err := runner.Run(context.Background(), "u1", "c1", "summarize the document")

	assert.NoError(t, err)
	assert.Len(t, replies, 2)
}

func TestRun_CheckpointFailureIsNotFatal(t *testing.T) {
	runner, generator, _, _, checkpoints := newTestRunner()

	generator.On("Generate", mock.Anything, supervisorPrompt, "hi").Return("chat", nil).Once()
	generator.On("Generate", mock.Anything, mock.Anything, "hi").Return("Hello.", nil).Once()
	checkpoints.On("Save", mock.Anything, "u1_c1", mock.Anything).Return(errors.New("mongo down"))

	replies, err := runner.Run(context.Background(), "u1", "c1", "hi")

	assert.NoError(t, err)
	assert.Len(t, replies, 1)
}

// blockingGenerator counts how many turns execute concurrently.
type blockingGenerator struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (g *blockingGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	if g.active.Add(1) > 1 {
		g.overlap.Store(true)
	}
	defer g.active.Add(-1)
	return "chat done", nil
}

type noopCheckpointer struct{}

func (noopCheckpointer) Save(context.Context, string, TurnState) error { return nil }

func TestRun_TurnsAreSerializedAcrossChats(t *testing.T) {
	generator := &blockingGenerator{}
	runner := NewRunner(generator, new(MockRetriever), new(MockContentSaver), noopCheckpointer{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := runner.Run(context.Background(), "u1", "c1", "hello")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.False(t, generator.overlap.Load(), "agent turns must not overlap")
}
