package www

import (
	"net/http"
	"strings"

	"wmscore/store"
)

// route is one gated API endpoint. Every listed permission is required.
type route struct {
	method  string
	pattern string
	perms   []string
	handler http.HandlerFunc
}

func (h *Handlers) routes() []route {
	return []route{
		// Inventory
		{"POST", "/inventory/adjust", []string{store.PermInventoryAdjust}, h.apiAdjustStock},
		{"GET", "/inventory", []string{store.PermInventoryRead}, h.apiListStock},
		{"GET", "/locations/{id}/stock", []string{store.PermInventoryRead}, h.apiLocationStock},
		{"GET", "/location_states", []string{store.PermInventoryRead}, h.apiLocationStates},

		// Containers
		{"POST", "/containers", []string{store.PermContainersWrite}, h.apiCreateContainer},
		{"GET", "/containers", []string{store.PermContainersRead}, h.apiListContainers},
		{"DELETE", "/containers/{id}", []string{store.PermContainersWrite}, h.apiDeleteContainer},
		{"POST", "/containers/{id}/bind", []string{store.PermContainersWrite}, h.apiBindContainer},
		{"POST", "/containers/{id}/unbind", []string{store.PermContainersWrite}, h.apiUnbindContainer},
		{"POST", "/containers/{id}/move", []string{store.PermContainerMovesWrite}, h.apiMoveContainer},
		{"POST", "/containers/{id}/stock/adjust", []string{store.PermInventoryAdjust}, h.apiAdjustContainerStock},
		{"GET", "/container_inventory", []string{store.PermContainersRead}, h.apiListContainerStock},
		{"GET", "/container_moves", []string{store.PermContainerMovesRead}, h.apiListContainerMoves},

		// Orders
		{"POST", "/inbounds", []string{store.PermOrdersWrite}, h.apiCreateInbound},
		{"POST", "/inbounds/{id}/receive", []string{store.PermInboundReceive}, h.apiReceiveInbound},
		{"POST", "/outbounds", []string{store.PermOrdersWrite}, h.apiCreateOutbound},
		{"POST", "/outbounds/{id}/reserve", []string{store.PermOutboundReserve}, h.apiReserveOutbound},
		{"POST", "/outbounds/{id}/pick", []string{store.PermOutboundPick}, h.apiPickOutbound},
		{"POST", "/outbounds/{id}/pack", []string{store.PermOutboundPack}, h.apiPackOutbound},
		{"POST", "/outbounds/{id}/ship", []string{store.PermOutboundShip}, h.apiShipOutbound},
		{"GET", "/orders", []string{store.PermOrdersRead}, h.apiListOrders},
		{"GET", "/orders/{id}", []string{store.PermOrdersRead}, h.apiGetOrder},
		{"GET", "/orders/{id}/lines", []string{store.PermOrdersRead}, h.apiOrderLines},
		{"GET", "/orders/{id}/history", []string{store.PermOrdersRead}, h.apiOrderHistory},

		// Ledger and audit history
		{"GET", "/stock_moves", []string{store.PermStockMovesRead}, h.apiListStockMoves},
		{"GET", "/operation_logs", []string{store.PermStockMovesRead}, h.apiListOperationLogs},

		// Master data
		{"POST", "/warehouses", []string{store.PermAreasWrite}, h.apiCreateWarehouse},
		{"GET", "/warehouses", []string{store.PermAreasRead}, h.apiListWarehouses},
		{"DELETE", "/warehouses/{id}", []string{store.PermAreasWrite}, h.apiDeleteWarehouse},
		{"POST", "/locations", []string{store.PermLocationsWrite}, h.apiCreateLocation},
		{"GET", "/locations", []string{store.PermLocationsRead}, h.apiListLocations},
		{"PUT", "/locations/{id}/status", []string{store.PermLocationsWrite}, h.apiSetLocationStatus},
		{"DELETE", "/locations/{id}", []string{store.PermLocationsWrite}, h.apiDeleteLocation},
		{"POST", "/materials", []string{store.PermMaterialsWrite}, h.apiCreateMaterial},
		{"GET", "/materials", []string{store.PermMaterialsRead}, h.apiListMaterials},
		{"DELETE", "/materials/{id}", []string{store.PermMaterialsDelete}, h.apiDeleteMaterial},

		// Identity
		{"GET", "/users", []string{store.PermUsersRead}, h.apiListUsers},
		{"POST", "/users", []string{store.PermUsersWrite}, h.apiCreateUser},
		{"GET", "/roles", []string{store.PermRolesRead}, h.apiListRoles},
		{"POST", "/roles", []string{store.PermRolesWrite}, h.apiCreateRole},
		{"GET", "/permissions", []string{store.PermRolesRead}, h.apiListPermissions},
	}
}

// gate rejects callers missing any of perms with 403.
func (h *Handlers) gate(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identityFrom(r.Context())
			var missing []string
			for _, p := range perms {
				if !id.Perms[p] {
					missing = append(missing, p)
				}
			}
			if len(missing) > 0 {
				h.jsonError(w, "missing permission: "+strings.Join(missing, ", "), "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
