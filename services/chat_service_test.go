package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
)

func newChatService(t *testing.T, retriever Retriever, completer Completer) (*ChatService, *gorm.DB, uuid.UUID, *models.Child) {
	t.Helper()
	db := openTestDB(t)
	userID, child := seedUserChild(t, db, mustDate(t, "2023-01-15"))
	retrieval := NewRetrievalService(retriever, &fakeRetriever{}, nil)
	svc := NewChatService(db, retrieval, NewNutritionService(db), completer, nil)
	return svc, db, userID, child
}

func TestBuildContextOrdersAndFlags(t *testing.T) {
	hits := []GuidelineHit{
		{ID: "g1", Title: "Iron", Source: "WHO", Content: "Iron matters.", Score: 0.9},
		{ID: "g2", Title: "Variety", Source: "AAP", Content: "Offer variety.", Score: 0.6},
	}
	svc, db, userID, child := newChatService(t, &fakeRetriever{hits: hits}, &fakeCompleter{})
	setTestTime(t, mustDate(t, "2024-06-10"))
	seedMeal(t, db, userID, child.ID, "2024-06-09", models.Nutrients{Calories: 800, ProteinG: 20})

	history := []models.ChatMessage{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}
	chatCtx, err := svc.BuildContext(context.Background(), userID, child.ID, "iron foods?", history)
	require.NoError(t, err)

	assert.True(t, chatCtx.UsedVector)
	require.Len(t, chatCtx.Blocks, 5)
	assert.Equal(t, BlockKindGuideline, chatCtx.Blocks[0].Kind)
	assert.Equal(t, "Iron (WHO): Iron matters.", chatCtx.Blocks[0].Content)
	assert.Equal(t, BlockKindGuideline, chatCtx.Blocks[1].Kind)
	assert.Equal(t, BlockKindTrend, chatCtx.Blocks[2].Kind)
	assert.Contains(t, chatCtx.Blocks[2].Content, "Last 7 days: 1 meals logged")
	assert.Equal(t, BlockKindChatTurn, chatCtx.Blocks[3].Kind)
	assert.Equal(t, "user: hello", chatCtx.Blocks[3].Content)
	assert.Equal(t, "assistant: hi", chatCtx.Blocks[4].Content)
}

func TestBuildContextUnknownChild(t *testing.T) {
	svc, _, userID, _ := newChatService(t, &fakeRetriever{}, &fakeCompleter{})
	_, err := svc.BuildContext(context.Background(), userID, uuid.New(), "q", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuildContextAbsorbsRetrievalFailure(t *testing.T) {
	svc, _, userID, child := newChatService(t, &fakeRetriever{err: assert.AnError}, &fakeCompleter{})
	// fallback retriever returns nothing, vector errors: no guideline blocks
	chatCtx, err := svc.BuildContext(context.Background(), userID, child.ID, "q", nil)
	require.NoError(t, err)
	assert.False(t, chatCtx.UsedVector)
	for _, b := range chatCtx.Blocks {
		assert.NotEqual(t, BlockKindGuideline, b.Kind)
	}
}

func TestBuildContextDeduplicatesHits(t *testing.T) {
	hits := []GuidelineHit{
		{ID: "g1", Title: "Iron", Source: "WHO", Content: "Iron matters.", Score: 0.5},
		{ID: "g1", Title: "Iron", Source: "WHO", Content: "Iron matters.", Score: 0.9},
		{ID: "g2", Title: "Variety", Source: "AAP", Content: "Offer variety.", Score: 0.7},
	}
	svc, _, userID, child := newChatService(t, &fakeRetriever{hits: hits}, &fakeCompleter{})

	chatCtx, err := svc.BuildContext(context.Background(), userID, child.ID, "q", nil)
	require.NoError(t, err)

	var guidelines []ContextBlock
	for _, b := range chatCtx.Blocks {
		if b.Kind == BlockKindGuideline {
			guidelines = append(guidelines, b)
		}
	}
	require.Len(t, guidelines, 2)
	assert.Equal(t, "g1", guidelines[0].Source)
	assert.Equal(t, 0.9, guidelines[0].Score, "highest score wins for a duplicated ID")
	assert.Equal(t, "g2", guidelines[1].Source)
}

func TestBuildContextLimitsHistoryTurns(t *testing.T) {
	svc, _, userID, child := newChatService(t, &fakeRetriever{}, &fakeCompleter{})

	var history []models.ChatMessage
	for i := 0; i < 10; i++ {
		history = append(history, models.ChatMessage{Role: "user", Content: strings.Repeat("m", i+1)})
	}
	chatCtx, err := svc.BuildContext(context.Background(), userID, child.ID, "q", history)
	require.NoError(t, err)

	var turns []ContextBlock
	for _, b := range chatCtx.Blocks {
		if b.Kind == BlockKindChatTurn {
			turns = append(turns, b)
		}
	}
	require.Len(t, turns, 6)
	assert.Equal(t, "user: "+strings.Repeat("m", 5), turns[0].Content, "only the most recent turns survive")
}

func TestAssembleWithinBudgetDropOrder(t *testing.T) {
	guidelines := []ContextBlock{
		{Kind: BlockKindGuideline, Content: strings.Repeat("g", 100), Score: 0.9},
		{Kind: BlockKindGuideline, Content: strings.Repeat("h", 100), Score: 0.5},
	}
	trend := &ContextBlock{Kind: BlockKindTrend, Content: strings.Repeat("t", 100)}
	turns := []ContextBlock{
		{Kind: BlockKindChatTurn, Content: strings.Repeat("a", 100)},
		{Kind: BlockKindChatTurn, Content: strings.Repeat("b", 100)},
	}

	t.Run("everything fits", func(t *testing.T) {
		out := assembleWithinBudget(guidelines, trend, turns, 500)
		assert.Len(t, out, 5)
	})

	t.Run("oldest turns drop first", func(t *testing.T) {
		out := assembleWithinBudget(guidelines, trend, turns, 400)
		require.Len(t, out, 4)
		assert.Equal(t, strings.Repeat("b", 100), out[3].Content)
	})

	t.Run("trend drops after turns", func(t *testing.T) {
		out := assembleWithinBudget(guidelines, trend, turns, 200)
		require.Len(t, out, 2)
		assert.Equal(t, BlockKindGuideline, out[0].Kind)
		assert.Equal(t, BlockKindGuideline, out[1].Kind)
	})

	t.Run("lowest scoring guideline drops last", func(t *testing.T) {
		out := assembleWithinBudget(guidelines, trend, turns, 100)
		require.Len(t, out, 1)
		assert.Equal(t, strings.Repeat("g", 100), out[0].Content)
	})
}

func TestSendMessagePersistsBothTurns(t *testing.T) {
	completer := &fakeCompleter{response: "Offer iron rich purees."}
	svc, db, userID, child := newChatService(t, &fakeRetriever{hits: []GuidelineHit{
		{ID: "g1", Title: "Iron", Source: "WHO", Content: "Iron matters.", Score: 0.9},
	}}, completer)

	session, err := svc.CreateSession(context.Background(), userID, child.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.SessionName)

	reply, err := svc.SendMessage(context.Background(), userID, session.ID, "what about iron?")
	require.NoError(t, err)
	assert.Equal(t, "Offer iron rich purees.", reply.Response)
	assert.True(t, reply.UsedVector)
	assert.NotEmpty(t, reply.Blocks)
	assert.Equal(t, reply.Blocks, completer.blocks, "the completion sees exactly the assembled blocks")

	messages, err := svc.GetMessages(context.Background(), userID, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "what about iron?", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)

	var count int64
	require.NoError(t, db.Model(&models.ChatMessage{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, userID, child := newChatService(t, &fakeRetriever{}, &fakeCompleter{response: "ok"})
	session, err := svc.CreateSession(context.Background(), userID, child.ID, "s")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), userID, session.ID, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SendMessage(context.Background(), userID, uuid.New(), "hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateSessionRequiresOwnedChild(t *testing.T) {
	svc, _, userID, _ := newChatService(t, &fakeRetriever{}, &fakeCompleter{})
	_, err := svc.CreateSession(context.Background(), userID, uuid.New(), "s")
	assert.ErrorIs(t, err, ErrNotFound)
}
