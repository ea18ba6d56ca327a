package engine

const (
	EventStockChanged EventType = iota + 1
	EventOrderCreated
	EventOrderStatusChanged
	EventContainerChanged
	EventMasterDataChanged
)

func (t EventType) String() string {
	switch t {
	case EventStockChanged:
		return "stock_changed"
	case EventOrderCreated:
		return "order_created"
	case EventOrderStatusChanged:
		return "order_status_changed"
	case EventContainerChanged:
		return "container_changed"
	case EventMasterDataChanged:
		return "master_data_changed"
	}
	return "unknown"
}

// --- Event payloads ---

// StockChangedEvent is emitted once per ledger move. MoveType carries the
// full move type, including any ":reason" suffix.
type StockChangedEvent struct {
	MaterialID int64
	LocationID int64
	MoveType   string
	Qty        int64
	RefID      int64
}

type OrderCreatedEvent struct {
	OrderID   int64
	OrderNo   string
	OrderType string
	Lines     int
	Actor     string
}

type OrderStatusChangedEvent struct {
	OrderID   int64
	OrderNo   string
	OrderType string
	OldStatus string
	NewStatus string
	Actor     string
}

type ContainerChangedEvent struct {
	ContainerID    int64
	Code           string
	Action         string // "created", "bound", "unbound", "moved", "deleted", "stock_adjusted"
	FromLocationID int64
	ToLocationID   int64
	Actor          string
}

type MasterDataChangedEvent struct {
	Entity   string // "warehouse", "location", "material"
	EntityID int64
	Action   string // "created", "updated", "deleted", "soft_deleted"
	Actor    string
}
