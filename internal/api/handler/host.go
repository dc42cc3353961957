package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/wincert/internal/api/dto"
	apierrors "github.com/remiblancher/wincert/internal/api/errors"
	"github.com/remiblancher/wincert/internal/api/service"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/inventory"
)

// HostHandler handles host listing and read-only host queries.
type HostHandler struct {
	service *service.Service
}

// NewHostHandler creates a new HostHandler.
func NewHostHandler(svc *service.Service) *HostHandler {
	return &HostHandler{service: svc}
}

// List handles GET /api/v1/hosts
func (h *HostHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := dto.HostListResponse{Hosts: make([]dto.HostInfo, 0, len(h.service.Hosts()))}
	for _, host := range h.service.Hosts() {
		t := host.Target()
		resp.Hosts = append(resp.Hosts, dto.HostInfo{
			Name:     host.Name,
			Endpoint: t.Endpoint(),
			Local:    t.IsLocal(),
			Auth:     host.Auth,
			Store:    host.Store,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// Inventory handles GET /api/v1/hosts/{host}/inventory
func (h *HostHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	q := r.URL.Query()

	req := service.InventoryRequest{Store: q.Get("store")}
	for name, dst := range map[string]*bool{
		"bindings":             &req.Bindings,
		"tolerate_missing_iis": &req.TolerateMissingIIS,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, apierrors.NewValidationError(
				"Invalid query parameter", map[string]string{name: v}))
			return
		}
		*dst = b
	}

	snap, err := h.service.Inventory(r.Context(), host, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, inventoryResponse(snap))
}

// Bindings handles GET /api/v1/hosts/{host}/bindings
func (h *HostHandler) Bindings(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")

	bindings, err := h.service.Bindings(r.Context(), host)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := dto.BindingListResponse{Host: host, Bindings: make([]dto.BindingInfo, 0, len(bindings))}
	for _, b := range bindings {
		resp.Bindings = append(resp.Bindings, bindingInfo(b))
	}
	respondJSON(w, http.StatusOK, resp)
}

func inventoryResponse(snap *inventory.Snapshot) dto.InventoryResponse {
	resp := dto.InventoryResponse{
		Host:     snap.Host,
		Store:    snap.Store,
		TakenAt:  snap.TakenAt.Format(time.RFC3339),
		Bindings: snap.Bindings,
		Items:    make([]dto.InventoryItem, 0, len(snap.Items)),
	}
	for _, item := range snap.Items {
		resp.Items = append(resp.Items, dto.InventoryItem{
			Alias:           item.Alias,
			PrivateKeyEntry: item.PrivateKeyEntry,
			Certificates:    item.Certificates,
			ItemStatus:      string(item.ItemStatus),
			UseChainLevel:   item.UseChainLevel,
			Parameters:      item.Parameters,
		})
	}
	return resp
}

func bindingInfo(b iis.Binding) dto.BindingInfo {
	return dto.BindingInfo{
		Site:        b.Site,
		Protocol:    b.Protocol,
		Information: b.Information,
		IPAddress:   b.IPAddress,
		Port:        b.Port,
		HostHeader:  b.HostHeader,
		Thumbprint:  b.Thumbprint,
		SNIFlag:     int(b.SNI),
		SNILabel:    b.SNI.Label(),
	}
}
