package shop

import "testing"

func TestCanSettle(t *testing.T) {
	cases := []struct {
		from, to SettleStatus
		want     bool
	}{
		{StatusUnsettled, StatusSettled, true},
		{StatusUnsettled, StatusUnsettled, false},
		{StatusSettled, StatusUnsettled, false}, // SETTLED is terminal
		{StatusSettled, StatusSettled, false},
		{SettleStatus("BOGUS"), StatusSettled, false},
	}
	for _, c := range cases {
		if got := CanSettle(c.from, c.to); got != c.want {
			t.Errorf("CanSettle(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
