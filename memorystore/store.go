package memorystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Embedder produces a vector embedding for a piece of text. MemoryStore
// never loads a model itself: the caller passes one to Open, and the same
// value can also be given to the context subsystem (see DESIGN.md, Open
// Question 1).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Logger is the narrow slog-shaped interface the store logs through.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nullLogger struct{}

func (nullLogger) Warn(string, ...any)  {}
func (nullLogger) Error(string, ...any) {}

// Config controls store-wide thresholds. Zero values are replaced by
// SetDefaults.
type Config struct {
	MaxMemories         int
	SimilarityThreshold float64
}

// SetDefaults fills unset fields with the runtime's defaults.
func (c *Config) SetDefaults() {
	if c.MaxMemories <= 0 {
		c.MaxMemories = 1000
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.3
	}
}

// Store is the SQLite-backed MemoryStore. It is safe for concurrent use: a
// single connection with explicit transactions gives record-level atomicity
// without a cross-record transactional invariant (spec: §5, concurrency).
type Store struct {
	db       *sql.DB
	embedder Embedder // may be nil: falls back to substring search
	logger   Logger
	mu       sync.Mutex
	cfg      Config
}

// Open creates (or reuses) the SQLite database at path and migrates its
// schema. embedder may be nil.
func Open(path string, embedder Embedder, cfg Config, logger Logger) (*Store, error) {
	cfg.SetDefaults()
	if logger == nil {
		logger = nullLogger{}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("memorystore: open %s: %w", path, err)
	}
	// A single open connection avoids SQLite's writer-serialization
	// surprises and matches the spec's "single connection, explicit
	// commit/rollback" invariant.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, embedder: embedder, logger: logger, cfg: cfg}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpdateConfig applies new thresholds without requiring a restart.
func (s *Store) UpdateConfig(cfg Config) {
	cfg.SetDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	task TEXT NOT NULL,
	solution TEXT NOT NULL,
	agent TEXT,
	task_type TEXT,
	model_used TEXT,
	metadata TEXT,
	embedding BLOB,
	created_at TIMESTAMP NOT NULL,
	last_used TIMESTAMP,
	success_count INTEGER NOT NULL DEFAULT 0,
	quality_score REAL NOT NULL DEFAULT 0,
	feedback_count INTEGER NOT NULL DEFAULT 0,
	avg_rating REAL NOT NULL DEFAULT 0,
	is_helpful_count INTEGER NOT NULL DEFAULT 0,
	duration_seconds REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
CREATE INDEX IF NOT EXISTS idx_memories_quality_score ON memories(quality_score DESC);

CREATE TABLE IF NOT EXISTS failed_tasks (
	id TEXT PRIMARY KEY,
	task TEXT NOT NULL,
	agent TEXT,
	error TEXT,
	embedding BLOB,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_failed_tasks_created_at ON failed_tasks(created_at);

CREATE TABLE IF NOT EXISTS user_preferences (
	user_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (user_id, key)
);

CREATE TABLE IF NOT EXISTS model_task_stats (
	model TEXT NOT NULL,
	task_type TEXT NOT NULL,
	samples INTEGER NOT NULL DEFAULT 0,
	successes INTEGER NOT NULL DEFAULT 0,
	quality_sum REAL NOT NULL DEFAULT 0,
	duration_sum REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (model, task_type)
);
`

// migrate creates tables and indexes with IF NOT EXISTS, so re-running it
// never loses data. A table that already exists is left as it is: columns
// missing from an older database are not added.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("memorystore: migrate: %w", err)
	}
	return nil
}

// SaveSolution persists a new memory record and returns its ID. Failures
// are logged and swallowed: write failures never propagate to the caller
// (spec: MemoryStore.write never blocks the critical path).
func (s *Store) SaveSolution(ctx context.Context, task, solution, agent, taskType, modelUsed string, metadata map[string]any) string {
	id := uuid.NewString()

	var embedding []float32
	if s.embedder != nil {
		emb, err := s.embedder.Embed(ctx, task)
		if err != nil {
			s.logger.Warn("memorystore: embed failed, storing without vector", "task_id", id, "error", err)
		} else {
			embedding = emb
		}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		metaJSON = []byte("{}")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("memorystore: save-solution begin tx", "error", err)
		return id
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, task, solution, agent, task_type, model_used, metadata, embedding, created_at, last_used, success_count, quality_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0)
	`, id, task, solution, agent, taskType, modelUsed, string(metaJSON), encodeEmbedding(embedding), time.Now(), time.Now())
	if err != nil {
		tx.Rollback()
		s.logger.Error("memorystore: save-solution insert", "error", err)
		return id
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("memorystore: save-solution commit", "error", err)
	}

	s.cleanupIfNeeded(ctx)
	return id
}

// SearchSimilarTasks returns the k best matches by cosine similarity,
// filtered to similarity >= similarity_threshold. Falls back to substring
// search when no embedder is configured or the query cannot be embedded.
func (s *Store) SearchSimilarTasks(ctx context.Context, query string, k int) []SearchResult {
	rows, err := s.loadCandidates(ctx)
	if err != nil {
		s.logger.Error("memorystore: search-similar-tasks load", "error", err)
		return nil
	}

	var queryEmb []float32
	if s.embedder != nil {
		if emb, err := s.embedder.Embed(ctx, query); err == nil {
			queryEmb = emb
		}
	}

	var results []SearchResult
	if queryEmb == nil {
		results = s.textSearch(rows, query, k)
	} else {
		for _, r := range rows {
			if len(r.Embedding) == 0 {
				continue
			}
			sim := cosineSimilarity(queryEmb, r.Embedding)
			if sim < s.cfg.SimilarityThreshold {
				continue
			}
			results = append(results, SearchResult{Record: r, Similarity: sim})
		}
		sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	}

	if len(results) > k {
		results = results[:k]
	}
	s.touchLastUsed(ctx, results)
	return results
}

// SearchSimilarTasksWithQuality ranks by the combined similarity+quality
// score and additionally filters to quality_score >= minQuality.
func (s *Store) SearchSimilarTasksWithQuality(ctx context.Context, query string, k int, minQuality float64) []SearchResult {
	wide := s.SearchSimilarTasks(ctx, query, k*5+10)
	var filtered []SearchResult
	for _, r := range wide {
		if r.QualityScore < minQuality {
			continue
		}
		r.CombinedScore = combinedScore(r.Similarity, r.QualityScore)
		filtered = append(filtered, r)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CombinedScore > filtered[j].CombinedScore })
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	return filtered
}

func (s *Store) textSearch(rows []Record, query string, k int) []SearchResult {
	q := strings.ToLower(query)
	var out []SearchResult
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Task), q) {
			out = append(out, SearchResult{Record: r, Similarity: 0.5})
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func (s *Store) touchLastUsed(ctx context.Context, results []SearchResult) {
	if len(results) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, r := range results {
		if _, err := s.db.ExecContext(ctx, `UPDATE memories SET last_used = ? WHERE id = ?`, now, r.ID); err != nil {
			s.logger.Warn("memorystore: touch last_used", "id", r.ID, "error", err)
		}
	}
}

// UpdateSolutionFeedback recomputes avg_rating and quality_score per the
// monotonicity formula: the new average weights the prior average by the
// prior feedback count.
func (s *Store) UpdateSolutionFeedback(ctx context.Context, id string, rating int, isHelpful bool) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("memorystore: rating %d out of range [1,5]", rating)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memorystore: update-solution-feedback begin tx: %w", err)
	}
	defer tx.Rollback()

	var avgRating float64
	var feedbackCount, helpfulCount int
	row := tx.QueryRowContext(ctx, `SELECT avg_rating, feedback_count, is_helpful_count FROM memories WHERE id = ?`, id)
	if err := row.Scan(&avgRating, &feedbackCount, &helpfulCount); err != nil {
		if err == sql.ErrNoRows {
			s.logger.Warn("memorystore: update-solution-feedback: no such record", "id", id)
			return nil
		}
		return fmt.Errorf("memorystore: update-solution-feedback scan: %w", err)
	}

	newFeedbackCount := feedbackCount + 1
	newAvgRating := (avgRating*float64(feedbackCount) + float64(rating)) / float64(newFeedbackCount)
	newHelpfulCount := helpfulCount
	if isHelpful {
		newHelpfulCount++
	}
	newQuality := qualityScore(newAvgRating, newFeedbackCount, newHelpfulCount)

	_, err = tx.ExecContext(ctx, `
		UPDATE memories SET avg_rating = ?, feedback_count = ?, is_helpful_count = ?, quality_score = ?
		WHERE id = ?
	`, newAvgRating, newFeedbackCount, newHelpfulCount, newQuality, id)
	if err != nil {
		return fmt.Errorf("memorystore: update-solution-feedback update: %w", err)
	}
	return tx.Commit()
}

// GetBestModelForTaskType returns the highest-success-rate model recorded
// for taskType, or ok=false when there are no samples.
func (s *Store) GetBestModelForTaskType(ctx context.Context, taskType string) (ModelRecommendation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, samples, successes, quality_sum, duration_sum
		FROM model_task_stats WHERE task_type = ?
	`, taskType)
	if err != nil {
		s.logger.Error("memorystore: get-best-model-for-task-type", "error", err)
		return ModelRecommendation{}, false
	}
	defer rows.Close()

	var best *ModelTaskStat
	var bestRate float64 = -1
	for rows.Next() {
		var st ModelTaskStat
		st.TaskType = taskType
		if err := rows.Scan(&st.Model, &st.Samples, &st.Successes, &st.QualitySum, &st.DurationSum); err != nil {
			continue
		}
		if rate := st.SuccessRate(); rate > bestRate {
			bestRate = rate
			cp := st
			best = &cp
		}
	}
	if best == nil {
		return ModelRecommendation{}, false
	}
	return ModelRecommendation{
		Model:       best.Model,
		SuccessRate: best.SuccessRate(),
		AvgQuality:  best.AvgQuality(),
		AvgDuration: best.AvgDuration(),
		Samples:     best.Samples,
	}, true
}

// RecordModelOutcome folds one execution outcome into the (model, taskType)
// running counters that back GetBestModelForTaskType.
func (s *Store) RecordModelOutcome(ctx context.Context, model, taskType string, success bool, quality, durationSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	successInc := 0
	if success {
		successInc = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_task_stats (model, task_type, samples, successes, quality_sum, duration_sum)
		VALUES (?, ?, 1, ?, ?, ?)
		ON CONFLICT(model, task_type) DO UPDATE SET
			samples = samples + 1,
			successes = successes + excluded.successes,
			quality_sum = quality_sum + excluded.quality_sum,
			duration_sum = duration_sum + excluded.duration_sum
	`, model, taskType, successInc, quality, durationSeconds)
	if err != nil {
		s.logger.Warn("memorystore: record-model-outcome", "error", err)
	}
}

// SaveFailedTask logs a failure for later error-avoidance lookups.
func (s *Store) SaveFailedTask(ctx context.Context, task, agent, errText string) {
	var embedding []float32
	if s.embedder != nil {
		if emb, err := s.embedder.Embed(ctx, task); err == nil {
			embedding = emb
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failed_tasks (id, task, agent, error, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), task, agent, errText, encodeEmbedding(embedding), time.Now())
	if err != nil {
		s.logger.Warn("memorystore: save-failed-task", "error", err)
	}
}

// GetErrorAvoidancePrompt returns a warning block for task/agent if
// semantically similar past failures exist, else "".
func (s *Store) GetErrorAvoidancePrompt(ctx context.Context, task, agent string) string {
	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, `SELECT task, error, embedding FROM failed_tasks WHERE agent = ? ORDER BY created_at DESC LIMIT 50`, agent)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("memorystore: get-error-avoidance-prompt", "error", err)
		return ""
	}
	defer rows.Close()

	var queryEmb []float32
	if s.embedder != nil {
		if emb, err := s.embedder.Embed(ctx, task); err == nil {
			queryEmb = emb
		}
	}

	type hit struct{ task, errText string }
	var hits []hit
	q := strings.ToLower(task)
	for rows.Next() {
		var t, e string
		var blob []byte
		if err := rows.Scan(&t, &e, &blob); err != nil {
			continue
		}
		if queryEmb != nil {
			emb := decodeEmbedding(blob)
			if len(emb) > 0 && cosineSimilarity(queryEmb, emb) >= s.cfg.SimilarityThreshold {
				hits = append(hits, hit{t, e})
			}
		} else if strings.Contains(strings.ToLower(t), q) {
			hits = append(hits, hit{t, e})
		}
		if len(hits) >= 3 {
			break
		}
	}
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Warning: similar past tasks failed with these errors:\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "- %s\n", h.errText)
	}
	return b.String()
}

// SaveUserPreference upserts one (user, key) preference fact.
func (s *Store) SaveUserPreference(ctx context.Context, userID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, userID, key, value, time.Now())
	if err != nil {
		s.logger.Warn("memorystore: save-user-preference", "error", err)
	}
}

// GetPersonalizationPrompt concatenates a user's stored preferences into a
// short prompt-ready text block, or "" when there are none.
func (s *Store) GetPersonalizationPrompt(ctx context.Context, userID string) string {
	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM user_preferences WHERE user_id = ?`, userID)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("memorystore: get-personalization-prompt", "error", err)
		return ""
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, v))
	}
	if len(lines) == 0 {
		return ""
	}
	return "User preferences:\n" + strings.Join(lines, "\n")
}

// GetLearningStats returns an aggregate snapshot of the store's learning
// progress, used by health reporting.
func (s *Store) GetLearningStats(ctx context.Context) LearningStats {
	stats := LearningStats{}

	s.mu.Lock()
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN feedback_count > 0 THEN 1 ELSE 0 END),
			COALESCE(AVG(quality_score), 0),
			COALESCE(SUM(is_helpful_count) * 1.0 / NULLIF(SUM(feedback_count), 0), 0)
		FROM memories
	`)
	err := row.Scan(&stats.TotalMemories, &stats.WithFeedback, &stats.AvgQuality, &stats.HelpfulRate)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("memorystore: get-learning-stats", "error", err)
		return stats
	}
	stats.HelpfulRate *= 100

	s.mu.Lock()
	agentRows, err := s.db.QueryContext(ctx, `
		SELECT agent, AVG(quality_score), COUNT(*) FROM memories
		WHERE agent IS NOT NULL AND feedback_count > 0
		GROUP BY agent ORDER BY AVG(quality_score) DESC LIMIT 5
	`)
	s.mu.Unlock()
	if err == nil {
		for agentRows.Next() {
			var a AgentQuality
			if agentRows.Scan(&a.Agent, &a.AvgQuality, &a.Solutions) == nil {
				stats.TopAgents = append(stats.TopAgents, a)
			}
		}
		agentRows.Close()
	}

	s.mu.Lock()
	solRows, err := s.db.QueryContext(ctx, `
		SELECT id, task, quality_score, avg_rating, feedback_count FROM memories
		WHERE quality_score > 0 ORDER BY quality_score DESC LIMIT 5
	`)
	s.mu.Unlock()
	if err == nil {
		for solRows.Next() {
			var sm SolutionSummary
			if solRows.Scan(&sm.ID, &sm.Task, &sm.QualityScore, &sm.AvgRating, &sm.FeedbackCount) == nil {
				if len(sm.Task) > 100 {
					sm.Task = sm.Task[:100] + "..."
				}
				stats.TopSolutions = append(stats.TopSolutions, sm)
			}
		}
		solRows.Close()
	}

	return stats
}

// cleanupIfNeeded deletes (count - max_memories) rows ordered by
// quality_score ASC, created_at ASC (lowest quality, then oldest, first)
// once the table grows past max_memories.
func (s *Store) cleanupIfNeeded(ctx context.Context) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		s.logger.Warn("memorystore: cleanup-if-needed count", "error", err)
		return
	}
	if count <= s.cfg.MaxMemories {
		return
	}
	excess := count - s.cfg.MaxMemories
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM memories WHERE id IN (
			SELECT id FROM memories ORDER BY quality_score ASC, created_at ASC LIMIT ?
		)
	`, excess)
	if err != nil {
		s.logger.Warn("memorystore: cleanup-if-needed delete", "error", err)
	}
}

func (s *Store) loadCandidates(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, solution, agent, task_type, model_used, metadata, embedding,
		       created_at, last_used, success_count, quality_score, feedback_count,
		       avg_rating, is_helpful_count, duration_seconds
		FROM memories
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var metaJSON string
		var blob []byte
		var lastUsed sql.NullTime
		if err := rows.Scan(&r.ID, &r.Task, &r.Solution, &r.Agent, &r.TaskType, &r.ModelUsed,
			&metaJSON, &blob, &r.CreatedAt, &lastUsed, &r.SuccessCount, &r.QualityScore,
			&r.FeedbackCount, &r.AvgRating, &r.HelpfulCount, &r.DurationSeconds); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			r.LastUsed = lastUsed.Time
		}
		_ = json.Unmarshal([]byte(metaJSON), &r.Metadata)
		r.Embedding = decodeEmbedding(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	var v []float32
	_ = json.Unmarshal(b, &v)
	return v
}
