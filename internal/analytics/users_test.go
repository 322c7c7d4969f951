package analytics

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playbox/internal/core"
)

func sampleUsers() []core.User {
	return []core.User{
		{ID: 1, Name: "zoya", Phone: "9876500001", CurrentBalance: 300, TotalRecharge: 2000, TotalVisits: 4, Status: core.UserActive, RegistrationDate: "2024-01-05T09:00:00"},
		{ID: 2, Name: "Arjun", Phone: "9876500002", Email: "arjun@example.com", CurrentBalance: 1500, TotalRecharge: 1500, TotalVisits: 9, Status: core.UserActive},
		{ID: 3, Name: "Émile", CurrentBalance: 700, TotalRecharge: 700, TotalVisits: 1, Status: core.UserInactive},
		{ID: 4, Name: "Arjun", CurrentBalance: 1500, TotalRecharge: 3000, TotalVisits: 9, Status: core.UserActive, RegistrationDate: "2024-01-05T22:00:00"},
	}
}

func userIDs(us []core.User) []int64 {
	out := make([]int64, 0, len(us))
	for _, u := range us {
		out = append(out, u.ID)
	}
	return out
}

func TestSortUsers(t *testing.T) {
	tests := []struct {
		key  SortKey
		want []int64
	}{
		{SortByName, []int64{2, 4, 3, 1}},
		{SortByBalance, []int64{2, 4, 3, 1}},
		{SortByRecharge, []int64{4, 1, 2, 3}},
		{SortByVisits, []int64{2, 4, 1, 3}},
		{SortKey("bogus"), []int64{2, 4, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			users := sampleUsers()
			got := SortUsers(users, tt.key)
			assert.Equal(t, tt.want, userIDs(got))
			assert.Equal(t, []int64{1, 2, 3, 4}, userIDs(users), "input must keep its order")
		})
	}
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortByBalance, ParseSortKey("balance"))
	assert.Equal(t, SortByVisits, ParseSortKey(" VISITS "))
	assert.Equal(t, SortByName, ParseSortKey(""))
	assert.Equal(t, SortByName, ParseSortKey("age"))
}

func TestSearchUsers(t *testing.T) {
	users := sampleUsers()
	assert.Equal(t, []int64{1, 2, 3, 4}, userIDs(SearchUsers(users, "")))
	assert.Equal(t, []int64{2, 4}, userIDs(SearchUsers(users, "ARJUN")))
	assert.Equal(t, []int64{2}, userIDs(SearchUsers(users, "example.com")))
	assert.Equal(t, []int64{1}, userIDs(SearchUsers(users, "500001")))
	assert.Equal(t, []int64{3}, userIDs(SearchUsers(users, "3")))
	assert.Empty(t, SearchUsers(users, "nobody"))
}

func TestQueryUsers(t *testing.T) {
	users := sampleUsers()
	got := QueryUsers(users, UserQuery{Status: StatusActive, Balance: BalanceHigh, Sort: SortByRecharge})
	assert.Equal(t, []int64{4, 2}, userIDs(got))

	got = QueryUsers(users, UserQuery{Balance: BalanceLow})
	assert.Equal(t, []int64{1}, userIDs(got))

	got = QueryUsers(users, UserQuery{Status: StatusInactive, Thresholds: Thresholds{Low: 800, High: 2000}, Balance: BalanceLow})
	assert.Equal(t, []int64{3}, userIDs(got))
}

func TestComputeUserStats(t *testing.T) {
	now := time.Date(2024, 1, 5, 23, 0, 0, 0, ist)
	s := ComputeUserStats(sampleUsers(), now)
	assert.Equal(t, 4, s.TotalUsers)
	assert.Equal(t, 3, s.ActiveUsers)
	assert.Equal(t, int64(7200), s.TotalRecharge)
	assert.InDelta(t, 1000.0, s.AvgBalance, 0.001)
	assert.Equal(t, 2, s.NewUsersToday)

	assert.Zero(t, ComputeUserStats(nil, now).AvgBalance)
}

func TestComputeDailyRevenue(t *testing.T) {
	day := time.Date(2024, 1, 5, 12, 0, 0, 0, ist)
	rev := ComputeDailyRevenue(sampleTransactions(), day)
	assert.Equal(t, "2024-01-05", rev.Date)
	assert.Equal(t, int64(1000), rev.TotalDeposited)
	assert.Equal(t, int64(200), rev.TotalDeducted)
	assert.Equal(t, int64(800), rev.NetCashflow)
	require.Len(t, rev.MostActiveStaff, 2)
	assert.Equal(t, core.NameCount{Name: "Anita", Count: 1}, rev.MostActiveStaff[0])
	assert.Equal(t, []core.NameCount{{Name: "Ravi Kumar", Count: 2}}, rev.MostActiveUsers)

	empty := ComputeDailyRevenue(nil, day)
	assert.NotNil(t, empty.MostActiveStaff)
	assert.Empty(t, empty.MostActiveUsers)
}

func TestWriteTransactionsCSV(t *testing.T) {
	var buf bytes.Buffer
	txs := sampleTransactions()[:2]
	txs[1].BalanceAfter = i64p(800)
	require.NoError(t, WriteTransactionsCSV(&buf, txs))

	want := "ID,Timestamp,Type,User ID,User Name,Amount,Admin,Description,Previous Balance,Balance After\n" +
		"101,2024-01-05T18:30:00,ADD,7,Ravi Kumar,1000,Anita,Top-up,,\n" +
		"102,2024-01-05T19:00:00,DEDUCT,7,Ravi Kumar,200,anita,Bumper cars 9876543210,,800\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteUserCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUserCSV(&buf, core.User{ID: 2, Name: "Arjun", TotalRecharge: 1500, CurrentBalance: 1500, TotalVisits: 9}))
	assert.Equal(t, "User ID,Name,Total Recharge,Total Deduction,Balance,Visits,Last Visit\n2,Arjun,1500,0,1500,9,N/A\n", buf.String())
}
