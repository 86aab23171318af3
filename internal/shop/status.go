package shop

type SettleStatus string

const (
	StatusUnsettled SettleStatus = "UNSETTLED"
	StatusSettled   SettleStatus = "SETTLED"
)

var validNext = map[SettleStatus]map[SettleStatus]bool{
	StatusUnsettled: {StatusSettled: true},
	StatusSettled:   {},
}

// CanSettle reports whether the transition from -> to is permitted.
// SETTLED is terminal.
func CanSettle(from, to SettleStatus) bool {
	return validNext[from][to]
}
