package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
)

// GuidelineHit is one retrieved guideline chunk with its relevance score.
type GuidelineHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Region  string  `json:"region,omitempty"`
	Score   float64 `json:"score"`
}

// GuidelineFilter pre-filters retrieval by the child's profile. AgeMonths
// must fall inside a guideline's age band; region and language are matched
// when the guideline declares them.
type GuidelineFilter struct {
	AgeMonths int
	Region    string
	Language  string
}

// Retriever is the retrieval capability the context assembler is polymorphic
// over: one vector-backed implementation and one full-text fallback,
// selected at runtime by availability.
type Retriever interface {
	Search(ctx context.Context, query string, filter GuidelineFilter, k int) ([]GuidelineHit, error)
}

// ---------- vector path (chromem-go) ----------

const guidelineCollection = "nutrition-guidelines"

type VectorRetriever struct {
	collection *chromem.Collection
}

// NewVectorRetriever builds the embedded vector index. The embedding
// function calls the OpenAI embeddings API, so construction fails fast when
// no API key is configured.
func NewVectorRetriever() (*VectorRetriever, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(guidelineCollection, nil,
		chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small))
	if err != nil {
		return nil, fmt.Errorf("creating guideline collection: %w", err)
	}
	return &VectorRetriever{collection: col}, nil
}

// IndexGuidelines embeds and stores active guideline rows. Called at startup
// and whenever the external content process reloads the catalog.
func (r *VectorRetriever) IndexGuidelines(ctx context.Context, guidelines []models.NutritionGuideline) error {
	docs := make([]chromem.Document, 0, len(guidelines))
	for _, g := range guidelines {
		if !g.IsActive {
			continue
		}
		meta := map[string]string{
			"title":    g.Title,
			"source":   g.Source,
			"region":   g.Region,
			"language": g.Language,
		}
		if g.AgeMinMonths != nil {
			meta["age_min"] = strconv.Itoa(*g.AgeMinMonths)
		}
		if g.AgeMaxMonths != nil {
			meta["age_max"] = strconv.Itoa(*g.AgeMaxMonths)
		}
		docs = append(docs, chromem.Document{
			ID:       g.ID.String(),
			Metadata: meta,
			Content:  g.GuidelineText,
		})
	}
	if len(docs) == 0 {
		return nil
	}
	return r.collection.AddDocuments(ctx, docs, 2)
}

func (r *VectorRetriever) Search(ctx context.Context, query string, filter GuidelineFilter, k int) ([]GuidelineHit, error) {
	total := r.collection.Count()
	if total == 0 {
		return nil, nil
	}

	// Age bands are range predicates chromem metadata filters cannot
	// express, so over-fetch and post-filter.
	n := k * 4
	if n > total {
		n = total
	}
	results, err := r.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, err
	}

	hits := make([]GuidelineHit, 0, k)
	for _, res := range results {
		if !metadataMatches(res.Metadata, filter) {
			continue
		}
		hits = append(hits, GuidelineHit{
			ID:      res.ID,
			Title:   res.Metadata["title"],
			Content: res.Content,
			Source:  res.Metadata["source"],
			Region:  res.Metadata["region"],
			Score:   float64(res.Similarity),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func metadataMatches(meta map[string]string, f GuidelineFilter) bool {
	if v, ok := meta["age_min"]; ok {
		if min, err := strconv.Atoi(v); err == nil && f.AgeMonths < min {
			return false
		}
	}
	if v, ok := meta["age_max"]; ok {
		if max, err := strconv.Atoi(v); err == nil && f.AgeMonths > max {
			return false
		}
	}
	if f.Region != "" && meta["region"] != "" && !strings.EqualFold(meta["region"], f.Region) {
		return false
	}
	if f.Language != "" && meta["language"] != "" && !strings.EqualFold(meta["language"], f.Language) {
		return false
	}
	return true
}

// ---------- fallback path (full-text over the guidelines table) ----------

type FulltextRetriever struct {
	db *gorm.DB
}

func NewFulltextRetriever(db *gorm.DB) *FulltextRetriever {
	return &FulltextRetriever{db: db}
}

func (r *FulltextRetriever) Search(ctx context.Context, query string, filter GuidelineFilter, k int) ([]GuidelineHit, error) {
	q := r.db.WithContext(ctx).Model(&models.NutritionGuideline{}).
		Where("is_active = ?", true).
		Where("(age_min_months IS NULL OR age_min_months <= ?)", filter.AgeMonths).
		Where("(age_max_months IS NULL OR age_max_months >= ?)", filter.AgeMonths)
	if filter.Region != "" {
		q = q.Where("(region IS NULL OR region = '' OR region = ?)", filter.Region)
	}
	if filter.Language != "" {
		q = q.Where("(language IS NULL OR language = '' OR language = ?)", filter.Language)
	}

	terms := queryTerms(query)
	if len(terms) > 0 {
		var clauses []string
		var args []interface{}
		for _, t := range terms {
			clauses = append(clauses, "(lower(guideline_text) LIKE ? OR lower(title) LIKE ?)")
			args = append(args, "%"+t+"%", "%"+t+"%")
		}
		q = q.Where(strings.Join(clauses, " OR "), args...)
	}

	var rows []models.NutritionGuideline
	if err := q.Limit(k * 2).Find(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]GuidelineHit, 0, len(rows))
	for _, g := range rows {
		hits = append(hits, GuidelineHit{
			ID:      g.ID.String(),
			Title:   g.Title,
			Content: g.GuidelineText,
			Source:  g.Source,
			Region:  g.Region,
			Score:   keywordScore(g, terms),
		})
	}
	sortHitsByScore(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func queryTerms(query string) []string {
	var out []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		t = strings.Trim(t, ".,!?\"'()")
		if len(t) >= 3 {
			out = append(out, t)
		}
	}
	return out
}

// keywordScore is a crude term-overlap fraction; only used to order
// fallback hits relative to each other.
func keywordScore(g models.NutritionGuideline, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	text := strings.ToLower(g.Title + " " + g.GuidelineText)
	matched := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func sortHitsByScore(hits []GuidelineHit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

// ---------- capability selection ----------

// RetrievalService prefers the vector path and falls back to full-text when
// the vector index is unavailable, errors, or returns nothing above the
// similarity threshold. Degradation is logged, never surfaced as a failure.
type RetrievalService struct {
	vector    Retriever
	fallback  Retriever
	threshold float64
	logger    *zap.Logger
}

func NewRetrievalService(vector, fallback Retriever, logger *zap.Logger) *RetrievalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrievalService{vector: vector, fallback: fallback, threshold: 0.3, logger: logger}
}

// Search returns hits plus whether the vector path served them.
func (s *RetrievalService) Search(ctx context.Context, query string, filter GuidelineFilter, k int) ([]GuidelineHit, bool, error) {
	if s.vector != nil {
		hits, err := s.vector.Search(ctx, query, filter, k)
		if err == nil && anyAboveThreshold(hits, s.threshold) {
			return hits, true, nil
		}
		if err != nil {
			s.logger.Warn("vector retrieval degraded, using full-text fallback", zap.Error(err))
		}
	}

	hits, err := s.fallback.Search(ctx, query, filter, k)
	if err != nil {
		return nil, false, err
	}
	return hits, false, nil
}

func anyAboveThreshold(hits []GuidelineHit, threshold float64) bool {
	for _, h := range hits {
		if h.Score >= threshold {
			return true
		}
	}
	return false
}
