package stockstate

// LocationState is the read model for one location: what it holds and
// which container, if any, is bound to it.
type LocationState struct {
	LocationID    int64       `json:"location_id"`
	Code          string      `json:"code"`
	WarehouseID   int64       `json:"warehouse_id"`
	Status        string      `json:"status"`
	BindingStatus string      `json:"binding_status"`
	ContainerID   *int64      `json:"container_id,omitempty"`
	ContainerCode string      `json:"container_code,omitempty"`
	Items         []StockItem `json:"items"`
	ItemCount     int         `json:"item_count"`
	Source        string      `json:"source"` // "redis" or "sql"
}

type StockItem struct {
	MaterialID int64 `json:"material_id"`
	Quantity   int64 `json:"quantity"`
	Reserved   int64 `json:"reserved"`
	Version    int64 `json:"version"`
}

type LocationMeta struct {
	LocationID    int64  `json:"location_id"`
	Code          string `json:"code"`
	WarehouseID   int64  `json:"warehouse_id"`
	Status        string `json:"status"`
	BindingStatus string `json:"binding_status"`
	ContainerID   *int64 `json:"container_id,omitempty"`
	ContainerCode string `json:"container_code,omitempty"`
}
