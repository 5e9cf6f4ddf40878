package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/utils"
)

const (
	BlockKindGuideline = "guideline"
	BlockKindTrend     = "trend"
	BlockKindChatTurn  = "chat_turn"
)

// ContextBlock is one unit of assembled prompt context.
type ContextBlock struct {
	Kind    string  `json:"kind"`
	Source  string  `json:"source,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Completer is the chat-completion model call.
type Completer interface {
	Complete(ctx context.Context, system string, blocks []ContextBlock, query string) (string, error)
}

type OpenAICompleter struct {
	client *OpenAIClient
	model  string
}

func NewOpenAICompleter(client *OpenAIClient, model string) *OpenAICompleter {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAICompleter{client: client, model: model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system string, blocks []ContextBlock, query string) (string, error) {
	var sb strings.Builder
	sb.WriteString(system)
	sb.WriteString("\n\nContext:\n")
	for _, b := range blocks {
		fmt.Fprintf(&sb, "[%s] %s\n", b.Kind, b.Content)
	}

	return c.client.ChatCompletion(ctx, c.model, 0.7, []chatMessage{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: query},
	})
}

// ChatService assembles the bounded RAG context and drives the assistant.
type ChatService struct {
	db              *gorm.DB
	retrieval       *RetrievalService
	nutrition       *NutritionService
	completer       Completer
	logger          *zap.Logger
	maxContextChars int
	retrievalK      int
	historyTurns    int
}

func NewChatService(db *gorm.DB, retrieval *RetrievalService, nutrition *NutritionService, completer Completer, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		db:              db,
		retrieval:       retrieval,
		nutrition:       nutrition,
		completer:       completer,
		logger:          logger,
		maxContextChars: 6000,
		retrievalK:      5,
		historyTurns:    6,
	}
}

// ChatContext is the assembled context plus the retrieval-path flag,
// surfaced for observability.
type ChatContext struct {
	Blocks     []ContextBlock `json:"blocks"`
	UsedVector bool           `json:"used_vector"`
}

// BuildContext merges age-filtered guideline retrieval, a compact summary of
// the child's last week of nutrition vs targets, and the most recent chat
// turns, deduplicated and truncated to the context budget. Retrieval
// degradation is absorbed; the flag records which path served the hits.
func (s *ChatService) BuildContext(ctx context.Context, userID, childID uuid.UUID, query string, history []models.ChatMessage) (*ChatContext, error) {
	var child models.Child
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", childID, userID).
		First(&child).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: child", ErrNotFound)
		}
		return nil, err
	}

	filter := GuidelineFilter{
		AgeMonths: child.AgeMonths(timeNow()),
		Region:    child.Region,
		Language:  child.Language,
	}

	hits, usedVector, err := s.retrieval.Search(ctx, query, filter, s.retrievalK)
	if err != nil {
		s.logger.Warn("guideline retrieval failed; assembling context without guidelines", zap.Error(err))
		hits = nil
	}
	hits = dedupeHits(hits)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	var guidelineBlocks []ContextBlock
	for _, h := range hits {
		guidelineBlocks = append(guidelineBlocks, ContextBlock{
			Kind:    BlockKindGuideline,
			Source:  h.ID,
			Content: fmt.Sprintf("%s (%s): %s", h.Title, h.Source, h.Content),
			Score:   h.Score,
		})
	}

	var trendBlock *ContextBlock
	if summary := s.trendSummary(ctx, userID, childID, filter.AgeMonths, child.Region); summary != "" {
		trendBlock = &ContextBlock{Kind: BlockKindTrend, Content: summary}
	}

	var turnBlocks []ContextBlock
	start := len(history) - s.historyTurns
	if start < 0 {
		start = 0
	}
	for _, msg := range history[start:] {
		turnBlocks = append(turnBlocks, ContextBlock{
			Kind:    BlockKindChatTurn,
			Content: msg.Role + ": " + msg.Content,
		})
	}

	blocks := assembleWithinBudget(guidelineBlocks, trendBlock, turnBlocks, s.maxContextChars)
	return &ChatContext{Blocks: blocks, UsedVector: usedVector}, nil
}

// assembleWithinBudget keeps the priority order guidelines > trend > turns
// and drops in the reverse order when over budget: oldest chat turns first,
// then the trend summary, then the lowest-scoring guidelines.
func assembleWithinBudget(guidelines []ContextBlock, trend *ContextBlock, turns []ContextBlock, budget int) []ContextBlock {
	size := func(blocks []ContextBlock) int {
		n := 0
		for _, b := range blocks {
			n += len(b.Content)
		}
		return n
	}

	total := size(guidelines) + size(turns)
	if trend != nil {
		total += len(trend.Content)
	}

	for total > budget && len(turns) > 0 {
		total -= len(turns[0].Content)
		turns = turns[1:]
	}
	if total > budget && trend != nil {
		total -= len(trend.Content)
		trend = nil
	}
	for total > budget && len(guidelines) > 0 {
		last := len(guidelines) - 1
		total -= len(guidelines[last].Content)
		guidelines = guidelines[:last]
	}

	out := make([]ContextBlock, 0, len(guidelines)+1+len(turns))
	out = append(out, guidelines...)
	if trend != nil {
		out = append(out, *trend)
	}
	out = append(out, turns...)
	return out
}

func dedupeHits(hits []GuidelineHit) []GuidelineHit {
	best := map[string]GuidelineHit{}
	var order []string
	for _, h := range hits {
		if prev, ok := best[h.ID]; !ok {
			best[h.ID] = h
			order = append(order, h.ID)
		} else if h.Score > prev.Score {
			best[h.ID] = h
		}
	}
	out := make([]GuidelineHit, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// trendSummary renders the last seven days of totals against the child's
// targets as one compact text block. Empty on aggregation failure.
func (s *ChatService) trendSummary(ctx context.Context, userID, childID uuid.UUID, ageMonths int, region string) string {
	end := utils.CalendarDate(timeNow())
	start := end.AddDate(0, 0, -6)

	series, err := s.nutrition.Trend(ctx, userID, childID, start, end)
	if err != nil {
		s.logger.Warn("trend summary unavailable for chat context", zap.Error(err))
		return ""
	}

	mealCount := 0
	var sums models.Nutrients
	for _, d := range series.Days {
		mealCount += d.MealCount
		sums.Calories += d.Nutrients.Calories
		sums.ProteinG += d.Nutrients.ProteinG
		sums.IronMg += d.Nutrients.IronMg
		sums.CalciumMg += d.Nutrients.CalciumMg
		sums.VitaminDIU += d.Nutrients.VitaminDIU
	}
	if mealCount == 0 {
		return "No meals logged in the last 7 days."
	}

	days := float64(len(series.Days))
	targets := utils.TargetsForAge(ageMonths, region)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Last 7 days: %d meals logged. Daily averages vs targets:", mealCount)
	appendAvg(&sb, "calories", sums.Calories/days, targets[utils.NutrCalories], "kcal")
	appendAvg(&sb, "protein", sums.ProteinG/days, targets[utils.NutrProteinG], "g")
	appendAvg(&sb, "iron", sums.IronMg/days, targets[utils.NutrIronMg], "mg")
	appendAvg(&sb, "calcium", sums.CalciumMg/days, targets[utils.NutrCalciumMg], "mg")
	appendAvg(&sb, "vitamin D", sums.VitaminDIU/days, targets[utils.NutrVitaminDIU], "IU")
	return sb.String()
}

func appendAvg(sb *strings.Builder, name string, avg, target float64, unit string) {
	if target <= 0 {
		return
	}
	fmt.Fprintf(sb, " %s %.1f/%.0f %s (%.0f%%);", name, avg, target, unit, avg/target*100)
}

// ---------- sessions ----------

func (s *ChatService) CreateSession(ctx context.Context, userID, childID uuid.UUID, name string) (*models.ChatSession, error) {
	var child models.Child
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", childID, userID).
		First(&child).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: child", ErrNotFound)
		}
		return nil, err
	}

	if name == "" {
		name = "Chat Session " + timeNow().Format("2006-01-02 15:04")
	}
	session := &models.ChatSession{UserID: userID, ChildID: childID, SessionName: name}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (s *ChatService) sessionMessages(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, []models.ChatMessage, error) {
	var session models.ChatSession
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: chat session", ErrNotFound)
		}
		return nil, nil, err
	}

	var messages []models.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, nil, err
	}
	return &session, messages, nil
}

func (s *ChatService) GetMessages(ctx context.Context, userID, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	_, messages, err := s.sessionMessages(ctx, userID, sessionID)
	return messages, err
}

// ChatReply is the assistant response plus retrieval observability.
type ChatReply struct {
	Response   string         `json:"response"`
	Blocks     []ContextBlock `json:"context_used"`
	UsedVector bool           `json:"used_vector"`
}

// SendMessage persists the user turn, assembles the context, calls the
// completion model and persists the assistant turn.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID uuid.UUID, query string) (*ChatReply, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", ErrValidation)
	}

	session, history, err := s.sessionMessages(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	chatCtx, err := s.BuildContext(ctx, userID, session.ChildID, query, history)
	if err != nil {
		return nil, err
	}

	userMsg := &models.ChatMessage{SessionID: sessionID, Role: "user", Content: query}
	if err := s.db.WithContext(ctx).Create(userMsg).Error; err != nil {
		return nil, err
	}

	response, err := s.completer.Complete(ctx, utils.ChatSystemPrompt, chatCtx.Blocks, query)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	assistantMsg := &models.ChatMessage{SessionID: sessionID, Role: "assistant", Content: response}
	if err := s.db.WithContext(ctx).Create(assistantMsg).Error; err != nil {
		return nil, err
	}

	return &ChatReply{Response: response, Blocks: chatCtx.Blocks, UsedVector: chatCtx.UsedVector}, nil
}
