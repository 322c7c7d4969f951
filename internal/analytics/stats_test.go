package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbox/internal/core"
)

func TestComputeStatistics_Empty(t *testing.T) {
	s := ComputeStatistics(nil)
	assert.Zero(t, s.TotalAdd)
	assert.Zero(t, s.TotalDeduct)
	assert.Zero(t, s.TotalTransactions)
	assert.Zero(t, s.AvgTransaction)
	assert.NotNil(t, s.TopAdmins)
	assert.Empty(t, s.TopAdmins)
}

func TestComputeStatistics_Example(t *testing.T) {
	txs := []core.Transaction{
		{Type: core.TxAdd, Amount: 500},
		{Type: core.TxDeduct, Amount: 200},
		{Type: core.TxNewUser, Amount: 0},
	}
	s := ComputeStatistics(txs)
	assert.Equal(t, int64(500), s.TotalAdd)
	assert.Equal(t, int64(200), s.TotalDeduct)
	assert.Equal(t, 1, s.TotalNewUser)
	assert.Equal(t, int64(300), s.NetBalance)
	assert.Equal(t, 3, s.TotalTransactions)
	assert.InDelta(t, 233.33, s.AvgTransaction, 0.005)
	assert.Zero(t, s.UniqueUsers, "zero user ids are not counted")
}

func TestComputeStatistics_Sample(t *testing.T) {
	txs := sampleTransactions()
	before := sampleTransactions()
	s := ComputeStatistics(txs)

	assert.Equal(t, before, txs, "input must not be mutated")
	assert.Equal(t, s.TotalAdd-s.TotalDeduct, s.NetBalance)
	assert.Equal(t, 3, s.UniqueUsers)
	require.Len(t, s.TopAdmins, 3)
	// grouping is by exact name
	assert.Equal(t, AdminActivity{Name: "Dev", Count: 2, Amount: 500}, s.TopAdmins[0])
	assert.Equal(t, "Anita", s.TopAdmins[1].Name)
	assert.Equal(t, "anita", s.TopAdmins[2].Name)
}

func TestComputeStatistics_TopAdminsCappedAndStable(t *testing.T) {
	var txs []core.Transaction
	add := func(name string, n int) {
		for i := 0; i < n; i++ {
			txs = append(txs, core.Transaction{Type: core.TxAdd, Amount: 10, AdminName: name})
		}
	}
	add("a", 1)
	add("b", 3)
	add("c", 1)
	add("d", 2)
	add("e", 1)
	add("f", 3)
	add("g", 1)

	s := ComputeStatistics(txs)
	require.Len(t, s.TopAdmins, MaxTopAdmins)
	names := make([]string, 0, len(s.TopAdmins))
	for i, a := range s.TopAdmins {
		names = append(names, a.Name)
		if i > 0 {
			assert.LessOrEqual(t, a.Count, s.TopAdmins[i-1].Count)
		}
	}
	assert.Equal(t, []string{"b", "f", "d", "a", "c"}, names)
}

func TestShareOfTotal(t *testing.T) {
	assert.Equal(t, 71, ShareOfTotal(500, 500, 200))
	assert.Equal(t, 29, ShareOfTotal(200, 500, 200))
	assert.Equal(t, 50, ShareOfTotal(1, 1, 1))
	assert.Equal(t, 0, ShareOfTotal(0, 0, 0))
}
