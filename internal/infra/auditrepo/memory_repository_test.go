package auditrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/horizon/internal/domain/auditlog"
)

func TestMemoryRepositoryNewestFirst(t *testing.T) {
	repo := NewMemoryRepository(3)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, repo.Insert(ctx, auditlog.Entry{ID: id, Outcome: auditlog.OutcomeSuccess}))
	}

	entries, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "d", entries[0].ID)
	require.Equal(t, "b", entries[2].ID)

	entries, err = repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "d", entries[0].ID)
}

func TestNullableScore(t *testing.T) {
	require.Nil(t, nullableScore(0, auditlog.OutcomeCancelled))
	require.Equal(t, 82, nullableScore(82, auditlog.OutcomeSuccess))
}
