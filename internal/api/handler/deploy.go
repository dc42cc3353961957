package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/remiblancher/wincert/internal/api/dto"
	apierrors "github.com/remiblancher/wincert/internal/api/errors"
	"github.com/remiblancher/wincert/internal/api/service"
	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/iis"
)

// maxBodyBytes bounds request bodies; PFX files are small.
const maxBodyBytes = 4 << 20

// DeployHandler handles certificate import and binding requests.
type DeployHandler struct {
	service *service.Service
}

// NewDeployHandler creates a new DeployHandler.
func NewDeployHandler(svc *service.Service) *DeployHandler {
	return &DeployHandler{service: svc}
}

// Import handles POST /api/v1/hosts/{host}/import
//
// A failed import answers 422 with the full result so the caller gets the
// diagnostics.
func (h *DeployHandler) Import(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")

	var req dto.ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Certificate == nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("certificate is required"))
		return
	}
	blob, err := req.Certificate.Decode()
	if err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("Invalid certificate encoding: "+err.Error()))
		return
	}

	res, err := h.service.Import(r.Context(), host, certstore.ImportRequest{
		Blob:           blob,
		Password:       req.Password,
		CryptoProvider: req.CryptoProvider,
		StorePath:      req.Store,
		Method:         req.Method,
		Source:         "api",
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := dto.ImportResponse{
		Host:        host,
		Store:       res.StorePath,
		Method:      res.Method,
		Variant:     res.Variant.String(),
		ExitCode:    res.ExitCode,
		Succeeded:   res.Succeeded,
		Thumbprint:  res.Thumbprint,
		Diagnostics: res.Diagnostics,
	}
	status := http.StatusOK
	if !res.Succeeded {
		status = http.StatusUnprocessableEntity
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
	}
	respondJSON(w, status, resp)
}

// Bind handles POST /api/v1/hosts/{host}/bind
//
// A reconciliation with failed bindings answers 422 with the full report.
func (h *DeployHandler) Bind(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")

	var req dto.BindRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	target := iis.Target{RenewalThumbprint: req.RenewalThumbprint}
	if req.Site != nil {
		target.Site = &iis.SiteBinding{
			Site:       req.Site.Site,
			IPAddress:  req.Site.IPAddress,
			Port:       req.Site.Port,
			HostHeader: req.Site.HostHeader,
			Protocol:   req.Site.Protocol,
			SNI:        iis.SNIMode(req.Site.SNIFlag),
		}
	}

	report, err := h.service.Bind(r.Context(), host, target, req.Thumbprint, req.Store)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !report.Succeeded {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, bindResponse(report))
}

func bindResponse(report *iis.Report) dto.BindResponse {
	resp := dto.BindResponse{
		RunID:      report.RunID,
		Host:       report.Host,
		Mode:       report.Mode,
		Thumbprint: report.Thumbprint,
		Store:      report.StorePath,
		Succeeded:  report.Succeeded,
		Bindings:   make([]dto.BindingOutcome, 0, len(report.Bindings)),
	}
	if report.Err != nil {
		resp.Error = report.Err.Error()
	}
	for _, o := range report.Bindings {
		out := dto.BindingOutcome{
			SiteBinding: dto.SiteBinding{
				Site:       o.Binding.Site,
				IPAddress:  o.Binding.IPAddress,
				Port:       o.Binding.Port,
				HostHeader: o.Binding.HostHeader,
				Protocol:   o.Binding.Protocol,
				SNIFlag:    int(o.Binding.SNI),
			},
			Succeeded: o.Succeeded,
			Step:      o.Step,
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		resp.Bindings = append(resp.Bindings, out)
	}
	return resp
}

// decodeJSON decodes a bounded JSON body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, &dto.APIError{
			Code:    apierrors.CodeInvalidRequest,
			Message: "Invalid JSON request body",
		})
		return false
	}
	return true
}
