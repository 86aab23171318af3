package shop

const (
	TopicOrderSettled        = "order.settled"
	TopicAllocationShortfall = "order.allocation.shortfall"
)

// Partition key = trade_no, so all events for one order keep their order.
func PartitionKey(tradeNo string) []byte { return []byte(tradeNo) }
