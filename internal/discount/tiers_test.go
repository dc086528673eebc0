package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelectTier(t *testing.T) {
	from := day("2026-01-01")
	to := day("2026-02-01")
	tiers := []Tier{
		{Name: "Base", MinTurnover: dec("0"), IncentivePercentage: dec("1"), IsActive: true},
		{Name: "Silver", MinTurnover: dec("100000"), IncentivePercentage: dec("2"), IsActive: true},
		{Name: "Gold", MinTurnover: dec("500000"), IncentivePercentage: dec("5"), IsActive: true},
		{Name: "Platinum", MinTurnover: dec("200000"), IncentivePercentage: dec("9"), IsActive: false},
		{Name: "Winter", MinTurnover: dec("150000"), IncentivePercentage: dec("3"), IsActive: true, ValidFrom: &from, ValidTo: &to},
	}

	cases := []struct {
		name     string
		turnover string
		on       time.Time
		want     string
		found    bool
	}{
		{name: "middle tier", turnover: "250000", on: day("2026-03-10"), want: "Silver", found: true},
		{name: "exact threshold", turnover: "500000", on: day("2026-03-10"), want: "Gold", found: true},
		{name: "zero turnover", turnover: "0", on: day("2026-03-10"), want: "Base", found: true},
		{name: "window tier", turnover: "160000", on: day("2026-01-15"), want: "Winter", found: true},
		{name: "negative turnover", turnover: "-1", on: day("2026-03-10"), found: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, ok := SelectTier(tiers, dec(tc.turnover), tc.on)
			require.Equal(t, tc.found, ok)
			if tc.found {
				require.Equal(t, tc.want, tier.Name)
			}
		})
	}
}

func TestSelectTierKeepsFirstOnTie(t *testing.T) {
	tiers := []Tier{
		{Name: "First", MinTurnover: dec("100"), IncentivePercentage: dec("1"), IsActive: true},
		{Name: "Second", MinTurnover: dec("100"), IncentivePercentage: dec("2"), IsActive: true},
	}
	tier, ok := SelectTier(tiers, dec("1000"), day("2026-03-10"))
	require.True(t, ok)
	require.Equal(t, "First", tier.Name)
}

func TestTierIncentiveFor(t *testing.T) {
	uncapped := Tier{IncentivePercentage: dec("5")}
	require.True(t, uncapped.IncentiveFor(dec("600000")).Equal(dec("30000")))

	capped := Tier{IncentivePercentage: dec("5"), MaxIncentiveAmount: dec("20000")}
	require.True(t, capped.IncentiveFor(dec("600000")).Equal(dec("20000")))
	require.True(t, capped.IncentiveFor(dec("100000")).Equal(dec("5000")))

	require.True(t, capped.IncentiveFor(dec("0")).IsZero())
	require.True(t, Tier{}.IncentiveFor(dec("1000")).IsZero())
}

func TestTurnoverWindow(t *testing.T) {
	from, to := TurnoverWindow(day("2026-03-10").Add(15 * time.Hour))
	require.Equal(t, day("2026-03-10"), to)
	require.Equal(t, day("2025-03-10"), from)
}
