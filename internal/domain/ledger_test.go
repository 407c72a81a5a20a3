package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/domain"
)

func TestLedgerAppendAndRecent(t *testing.T) {
	ledger := domain.NewLedger()
	require.True(t, ledger.Empty())
	_, ok := ledger.Last()
	require.False(t, ok)

	for i, id := range []string{"a", "b", "c"} {
		seq := ledger.Append(domain.Activity{ID: id})
		require.Equal(t, int64(i+1), seq)
	}

	recent := ledger.Recent(2)
	require.Len(t, recent, 2)
	require.Equal(t, "c", recent[0].ID)
	require.Equal(t, "b", recent[1].ID)

	require.Len(t, ledger.Recent(10), 3)
	require.Empty(t, ledger.Recent(0))
	require.Empty(t, ledger.Recent(-1))

	last, ok := ledger.Last()
	require.True(t, ok)
	require.Equal(t, "c", last.ID)
}

func TestLedgerAllReturnsCopy(t *testing.T) {
	ledger := domain.NewLedger(domain.Activity{ID: "a"})
	all := ledger.All()
	all[0].ID = "mutated"
	require.Equal(t, "a", ledger.All()[0].ID)
}

func TestNilLedger(t *testing.T) {
	var ledger *domain.Ledger
	require.Zero(t, ledger.Len())
	require.Empty(t, ledger.All())
	require.True(t, ledger.Score().Empty)
}
