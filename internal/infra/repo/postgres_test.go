package repo

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/interview-evaluator/internal/domain/embedding"
)

func TestParseEmbedding(t *testing.T) {
	got, err := parseEmbedding("[0.5, -1,2]")
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, -1, 2}, got)

	got, err = parseEmbedding(pgvector.NewVector([]float32{1, 2}))
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, got)

	got, err = parseEmbedding([]byte("[]"))
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = parseEmbedding(42)
	require.Error(t, err)
}

func TestToVectorKeepsModelTag(t *testing.T) {
	vec, err := toVector("[1,0]", "text-embedding-3-small")
	require.NoError(t, err)
	require.Equal(t, embedding.Vector{Model: "text-embedding-3-small", Values: []float32{1, 0}}, vec)

	vec, err = toVector(nil, "ignored")
	require.NoError(t, err)
	require.True(t, vec.IsZero())
	require.Nil(t, vectorParam(vec))
}

func TestIsPgCode(t *testing.T) {
	require.True(t, isPgCode(&pgconn.PgError{Code: pgUniqueViolation}, pgUniqueViolation))
	require.False(t, isPgCode(&pgconn.PgError{Code: pgUniqueViolation}, pgForeignKeyViolation))
	require.False(t, isPgCode(nil, pgUniqueViolation))
}
