package shop

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
)

var AllStatuses = []Status{StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCanceled}

// customer-side transitions; admins bypass this table via SetOrderStatus
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusCanceled: true},
	StatusPaid:      {},
	StatusShipped:   {},
	StatusDelivered: {},
	StatusCanceled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// Deletable reports whether an order in this status may be removed.
func (s Status) Deletable() bool {
	return s == StatusPending || s == StatusCanceled
}
