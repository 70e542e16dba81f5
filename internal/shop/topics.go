package shop

const (
	TopicOrderCreated       = "shop.order.created"
	TopicOrderStatusChanged = "shop.order.status_changed"
	TopicOrderDeleted       = "shop.order.deleted"
)

var AllTopics = []string{TopicOrderCreated, TopicOrderStatusChanged, TopicOrderDeleted}

// Partition key = order code, so every event of one order keeps its order.
func PartitionKey(orderCode string) []byte { return []byte(orderCode) }
