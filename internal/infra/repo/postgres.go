package repo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
	"github.com/yanqian/interview-evaluator/internal/domain/knowledge"
)

//go:embed schema.sql
var schemaSQL string

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}

// PostgresInterviewRepository persists interviews in Postgres.
type PostgresInterviewRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresInterviewRepository constructs the repository.
func NewPostgresInterviewRepository(pool *pgxpool.Pool) *PostgresInterviewRepository {
	return &PostgresInterviewRepository{pool: pool}
}

const interviewColumns = `id, job_id, candidate_id, status, evaluation_status, final_score, scheduled_at, version, created_at, updated_at`

func scanInterview(row pgx.Row) (evaluation.Interview, error) {
	var iv evaluation.Interview
	err := row.Scan(&iv.ID, &iv.JobID, &iv.CandidateID, &iv.Status, &iv.EvaluationStatus, &iv.FinalScore, &iv.ScheduledAt, &iv.Version, &iv.CreatedAt, &iv.UpdatedAt)
	return iv, err
}

func (r *PostgresInterviewRepository) Create(ctx context.Context, iv evaluation.Interview) (evaluation.Interview, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO interviews (job_id, candidate_id, status, evaluation_status, final_score, scheduled_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)
		RETURNING `+interviewColumns,
		iv.JobID, iv.CandidateID, iv.Status, iv.EvaluationStatus, iv.FinalScore, iv.ScheduledAt, iv.CreatedAt, iv.UpdatedAt)
	return scanInterview(row)
}

func (r *PostgresInterviewRepository) Get(ctx context.Context, id int64) (evaluation.Interview, bool, error) {
	iv, err := scanInterview(r.pool.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evaluation.Interview{}, false, nil
		}
		return evaluation.Interview{}, false, err
	}
	return iv, true, nil
}

func (r *PostgresInterviewRepository) CompareAndSwap(ctx context.Context, id, expectedVersion int64, update evaluation.InterviewUpdate) (evaluation.Interview, error) {
	iv, err := scanInterview(r.pool.QueryRow(ctx, `
		UPDATE interviews
		SET status = $3, evaluation_status = $4, final_score = $5, scheduled_at = $6,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING `+interviewColumns,
		id, expectedVersion, update.Status, update.EvaluationStatus, update.FinalScore, update.ScheduledAt))
	if err == nil {
		return iv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return evaluation.Interview{}, err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM interviews WHERE id = $1)`, id).Scan(&exists); err != nil {
		return evaluation.Interview{}, err
	}
	if !exists {
		return evaluation.Interview{}, evaluation.ErrNotFound
	}
	return evaluation.Interview{}, evaluation.ErrVersionConflict
}

// Delete relies on ON DELETE CASCADE for questions and answers.
func (r *PostgresInterviewRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM interviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}

var _ evaluation.InterviewRepository = (*PostgresInterviewRepository)(nil)

// PostgresQuestionRepository persists interview questions.
type PostgresQuestionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresQuestionRepository constructs the repository.
func NewPostgresQuestionRepository(pool *pgxpool.Pool) *PostgresQuestionRepository {
	return &PostgresQuestionRepository{pool: pool}
}

const questionColumns = `id, interview_id, source_knowledge_id, text, reference_answer, keywords, reference_embedding, embedding_model, approved, created_at`

func scanQuestion(row pgx.Row) (evaluation.Question, error) {
	var (
		q     evaluation.Question
		raw   any
		model string
	)
	if err := row.Scan(&q.ID, &q.InterviewID, &q.SourceKnowledgeID, &q.Text, &q.ReferenceAnswer, &q.Keywords, &raw, &model, &q.Approved, &q.CreatedAt); err != nil {
		return evaluation.Question{}, err
	}
	vec, err := toVector(raw, model)
	if err != nil {
		return evaluation.Question{}, err
	}
	q.ReferenceEmbedding = vec
	return q, nil
}

func (r *PostgresQuestionRepository) Insert(ctx context.Context, q evaluation.Question) (evaluation.Question, bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO interview_questions (interview_id, source_knowledge_id, text, reference_answer, keywords, reference_embedding, embedding_model, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (interview_id, source_knowledge_id) WHERE source_knowledge_id IS NOT NULL DO NOTHING
		RETURNING `+questionColumns,
		q.InterviewID, q.SourceKnowledgeID, q.Text, q.ReferenceAnswer, nonNilStrings(q.Keywords),
		vectorParam(q.ReferenceEmbedding), q.ReferenceEmbedding.Model, q.Approved, q.CreatedAt)
	stored, err := scanQuestion(row)
	switch {
	case err == nil:
		return stored, true, nil
	case isPgCode(err, pgForeignKeyViolation):
		return evaluation.Question{}, false, evaluation.ErrParentGone
	case !errors.Is(err, pgx.ErrNoRows) || q.SourceKnowledgeID == nil:
		return evaluation.Question{}, false, err
	}
	existing, err := scanQuestion(r.pool.QueryRow(ctx, `
		SELECT `+questionColumns+`
		FROM interview_questions
		WHERE interview_id = $1 AND source_knowledge_id = $2
	`, q.InterviewID, *q.SourceKnowledgeID))
	if err != nil {
		return evaluation.Question{}, false, err
	}
	return existing, false, nil
}

func (r *PostgresQuestionRepository) Get(ctx context.Context, id int64) (evaluation.Question, bool, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM interview_questions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evaluation.Question{}, false, nil
		}
		return evaluation.Question{}, false, err
	}
	return q, true, nil
}

func (r *PostgresQuestionRepository) ListByInterview(ctx context.Context, interviewID int64) ([]evaluation.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM interview_questions
		WHERE interview_id = $1
		ORDER BY id
	`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []evaluation.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *PostgresQuestionRepository) SetApproved(ctx context.Context, id int64, approved bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE interview_questions SET approved = $2 WHERE id = $1`, id, approved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}

func (r *PostgresQuestionRepository) UpdateReferenceEmbedding(ctx context.Context, q evaluation.Question) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE interview_questions
		SET reference_embedding = $2, embedding_model = $3
		WHERE id = $1
	`, q.ID, vectorParam(q.ReferenceEmbedding), q.ReferenceEmbedding.Model)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}

func (r *PostgresQuestionRepository) UpdateDraft(ctx context.Context, q evaluation.Question) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE interview_questions
		SET text = $2, reference_answer = $3, keywords = $4, reference_embedding = $5, embedding_model = $6
		WHERE id = $1 AND NOT approved
	`, q.ID, q.Text, q.ReferenceAnswer, nonNilStrings(q.Keywords), vectorParam(q.ReferenceEmbedding), q.ReferenceEmbedding.Model)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.draftMiss(ctx, q.ID)
	}
	return nil
}

// DeleteDraft relies on ON DELETE CASCADE for answers.
func (r *PostgresQuestionRepository) DeleteDraft(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM interview_questions WHERE id = $1 AND NOT approved`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.draftMiss(ctx, id)
	}
	return nil
}

// draftMiss tells a missing question from one approved concurrently.
func (r *PostgresQuestionRepository) draftMiss(ctx context.Context, id int64) error {
	var approved bool
	err := r.pool.QueryRow(ctx, `SELECT approved FROM interview_questions WHERE id = $1`, id).Scan(&approved)
	if errors.Is(err, pgx.ErrNoRows) {
		return evaluation.ErrNotFound
	}
	if err != nil {
		return err
	}
	return evaluation.ErrVersionConflict
}

var _ evaluation.QuestionRepository = (*PostgresQuestionRepository)(nil)

// PostgresAnswerRepository persists candidate answers.
type PostgresAnswerRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAnswerRepository constructs the repository.
func NewPostgresAnswerRepository(pool *pgxpool.Pool) *PostgresAnswerRepository {
	return &PostgresAnswerRepository{pool: pool}
}

const answerColumns = `id, interview_id, question_id, candidate_id, text, embedding, embedding_model, similarity, judgment, score, feedback, scoring_status, scoring_error, attempts, created_at, scored_at`

func scanAnswer(row pgx.Row) (evaluation.Answer, error) {
	var (
		a     evaluation.Answer
		raw   any
		model string
	)
	if err := row.Scan(&a.ID, &a.InterviewID, &a.QuestionID, &a.CandidateID, &a.Text, &raw, &model,
		&a.Similarity, &a.Judgment, &a.Score, &a.Feedback, &a.Status, &a.ScoringError, &a.Attempts, &a.CreatedAt, &a.ScoredAt); err != nil {
		return evaluation.Answer{}, err
	}
	vec, err := toVector(raw, model)
	if err != nil {
		return evaluation.Answer{}, err
	}
	a.Embedding = vec
	return a, nil
}

func (r *PostgresAnswerRepository) Insert(ctx context.Context, a evaluation.Answer) (evaluation.Answer, error) {
	stored, err := scanAnswer(r.pool.QueryRow(ctx, `
		INSERT INTO candidate_answers (interview_id, question_id, candidate_id, text, scoring_status, created_at)
		SELECT $1, q.id, $3, $4, $5, $6
		FROM interview_questions q
		WHERE q.id = $2 AND q.interview_id = $1
		RETURNING `+answerColumns,
		a.InterviewID, a.QuestionID, a.CandidateID, a.Text, a.Status, a.CreatedAt))
	switch {
	case err == nil:
		return stored, nil
	case errors.Is(err, pgx.ErrNoRows), isPgCode(err, pgForeignKeyViolation):
		return evaluation.Answer{}, evaluation.ErrParentGone
	case isPgCode(err, pgUniqueViolation):
		return evaluation.Answer{}, evaluation.ErrDuplicateAnswer
	default:
		return evaluation.Answer{}, err
	}
}

func (r *PostgresAnswerRepository) Get(ctx context.Context, id int64) (evaluation.Answer, bool, error) {
	a, err := scanAnswer(r.pool.QueryRow(ctx, `SELECT `+answerColumns+` FROM candidate_answers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evaluation.Answer{}, false, nil
		}
		return evaluation.Answer{}, false, err
	}
	return a, true, nil
}

func (r *PostgresAnswerRepository) ListByInterview(ctx context.Context, interviewID int64) ([]evaluation.Answer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+answerColumns+`
		FROM candidate_answers
		WHERE interview_id = $1
		ORDER BY id
	`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []evaluation.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveScore only touches rows whose interview still exists; a cascade
// delete that won the race leaves nothing to update.
func (r *PostgresAnswerRepository) SaveScore(ctx context.Context, a evaluation.Answer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE candidate_answers c
		SET embedding = $2, embedding_model = $3, similarity = $4, judgment = $5, score = $6,
		    feedback = $7, scoring_status = $8, scoring_error = $9, attempts = $10, scored_at = $11
		WHERE c.id = $1
		  AND EXISTS (SELECT 1 FROM interviews i WHERE i.id = c.interview_id)
	`, a.ID, vectorParam(a.Embedding), a.Embedding.Model, a.Similarity, a.Judgment, a.Score,
		a.Feedback, a.Status, a.ScoringError, a.Attempts, a.ScoredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return evaluation.ErrParentGone
	}
	return nil
}

var _ evaluation.AnswerRepository = (*PostgresAnswerRepository)(nil)

// PostgresKnowledgeRepository persists the question bank.
type PostgresKnowledgeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresKnowledgeRepository constructs the repository.
func NewPostgresKnowledgeRepository(pool *pgxpool.Pool) *PostgresKnowledgeRepository {
	return &PostgresKnowledgeRepository{pool: pool}
}

const knowledgeColumns = `id, technology, text, reference_answer, keywords, embedding, embedding_model, revision_of, created_at`

func scanKnowledge(row pgx.Row) (knowledge.Question, error) {
	var (
		q     knowledge.Question
		raw   any
		model string
	)
	if err := row.Scan(&q.ID, &q.Technology, &q.Text, &q.ReferenceAnswer, &q.Keywords, &raw, &model, &q.RevisionOf, &q.CreatedAt); err != nil {
		return knowledge.Question{}, err
	}
	vec, err := toVector(raw, model)
	if err != nil {
		return knowledge.Question{}, err
	}
	if !vec.IsZero() {
		q.Embedding = &vec
	}
	return q, nil
}

func (r *PostgresKnowledgeRepository) Create(ctx context.Context, q knowledge.Question) (knowledge.Question, error) {
	var (
		vec   any
		model string
	)
	if q.Embedding != nil {
		vec = vectorParam(*q.Embedding)
		model = q.Embedding.Model
	}
	return scanKnowledge(r.pool.QueryRow(ctx, `
		INSERT INTO knowledge_questions (technology, text, reference_answer, keywords, embedding, embedding_model, revision_of, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+knowledgeColumns,
		q.Technology, q.Text, q.ReferenceAnswer, nonNilStrings(q.Keywords), vec, model, q.RevisionOf, q.CreatedAt))
}

func (r *PostgresKnowledgeRepository) Get(ctx context.Context, id int64) (knowledge.Question, bool, error) {
	q, err := scanKnowledge(r.pool.QueryRow(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_questions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return knowledge.Question{}, false, nil
		}
		return knowledge.Question{}, false, err
	}
	return q, true, nil
}

func (r *PostgresKnowledgeRepository) ListByTechnology(ctx context.Context, technology string) ([]knowledge.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+knowledgeColumns+`
		FROM knowledge_questions k
		WHERE k.technology = $1
		  AND NOT EXISTS (SELECT 1 FROM knowledge_questions r WHERE r.revision_of = k.id)
		ORDER BY k.id
	`, technology)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []knowledge.Question
	for rows.Next() {
		q, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Delete relies on ON DELETE SET NULL to clear interview back-references.
func (r *PostgresKnowledgeRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM knowledge_questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return knowledge.ErrNotFound
	}
	return nil
}

func (r *PostgresKnowledgeRepository) AddFeedback(ctx context.Context, fb knowledge.Feedback) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO knowledge_feedback (question_id, manager_id, is_good, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, fb.QuestionID, fb.ManagerID, fb.IsGood, fb.Comment, fb.CreatedAt)
	if isPgCode(err, pgForeignKeyViolation) {
		return knowledge.ErrNotFound
	}
	return err
}

func (r *PostgresKnowledgeRepository) NegativeFeedbackIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT question_id FROM knowledge_feedback WHERE NOT is_good`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (r *PostgresKnowledgeRepository) KnowledgeUsage(ctx context.Context, candidateID int64) (map[int64]knowledge.Usage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.source_knowledge_id, MAX(q.created_at), BOOL_OR(i.candidate_id = $1)
		FROM interview_questions q
		JOIN interviews i ON i.id = q.interview_id
		WHERE q.source_knowledge_id IS NOT NULL
		GROUP BY q.source_knowledge_id
	`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]knowledge.Usage)
	for rows.Next() {
		var (
			id int64
			u  knowledge.Usage
		)
		if err := rows.Scan(&id, &u.LastUsedAt, &u.InCycle); err != nil {
			return nil, err
		}
		out[id] = u
	}
	return out, rows.Err()
}

var (
	_ knowledge.Repository  = (*PostgresKnowledgeRepository)(nil)
	_ knowledge.UsageLookup = (*PostgresKnowledgeRepository)(nil)
)

// PostgresDirectory reads jobs and candidates.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory constructs the directory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) Job(ctx context.Context, id int64) (evaluation.JobRef, bool, error) {
	var job evaluation.JobRef
	err := d.pool.QueryRow(ctx, `SELECT id, title, technology FROM jobs WHERE id = $1`, id).Scan(&job.ID, &job.Title, &job.Technology)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evaluation.JobRef{}, false, nil
		}
		return evaluation.JobRef{}, false, err
	}
	job.Technology = knowledge.NormalizeTechnology(job.Technology)
	return job, true, nil
}

func (d *PostgresDirectory) Candidate(ctx context.Context, id int64) (evaluation.CandidateRef, bool, error) {
	var c evaluation.CandidateRef
	err := d.pool.QueryRow(ctx, `SELECT id, name, technology FROM candidates WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.Technology)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evaluation.CandidateRef{}, false, nil
		}
		return evaluation.CandidateRef{}, false, err
	}
	return c, true, nil
}

var _ evaluation.Directory = (*PostgresDirectory)(nil)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func vectorParam(v embedding.Vector) any {
	if v.IsZero() {
		return nil
	}
	return pgvector.NewVector(v.Values)
}

func toVector(raw any, model string) (embedding.Vector, error) {
	if raw == nil {
		return embedding.Vector{}, nil
	}
	values, err := parseEmbedding(raw)
	if err != nil {
		return embedding.Vector{}, err
	}
	return embedding.Vector{Model: model, Values: values}, nil
}

func parseEmbedding(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case pgvector.Vector:
		return append([]float32(nil), v.Slice()...), nil
	case []float32:
		return append([]float32(nil), v...), nil
	case []byte:
		return parseEmbedding(string(v))
	case string:
		trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(v), "["), "]")
		if trimmed == "" {
			return nil, nil
		}
		parts := strings.Split(trimmed, ",")
		out := make([]float32, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
			if err != nil {
				return nil, err
			}
			out = append(out, float32(f))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported embedding type %T", raw)
	}
}
