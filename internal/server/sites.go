package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/benedict2310/slimlytics/internal/audit"
	"github.com/benedict2310/slimlytics/internal/sites"
)

const maxAdminBodyBytes = 64 << 10

type siteRequest struct {
	Name   *string `json:"name"`
	Domain *string `json:"domain"`
}

type sitesResponse struct {
	Sites []sites.Site `json:"sites"`
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	if !s.sitesReady(w) {
		return
	}
	items, err := s.sites.List(r.Context())
	if err != nil {
		s.writeInternalAPIError(w, r, "list sites failed", err)
		return
	}
	writeJSON(w, http.StatusOK, sitesResponse{Sites: items})
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	if !s.sitesReady(w) {
		return
	}
	siteID := chi.URLParam(r, "siteId")
	site, err := s.sites.Get(r.Context(), siteID)
	if err != nil {
		s.writeSiteError(w, r, "get site failed", err, siteID)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	if !s.sitesReady(w) {
		return
	}
	req, ok := decodeSiteRequest(w, r)
	if !ok {
		return
	}
	if req.Name == nil || req.Domain == nil {
		writeAPIError(w, http.StatusBadRequest, "name and domain are required", nil)
		return
	}

	site, err := s.sites.Create(r.Context(), *req.Name, *req.Domain)
	if err != nil {
		s.writeSiteError(w, r, "create site failed", err, "")
		return
	}
	s.logAudit(r.Context(), actorFromRequest(r), audit.OperationSiteCreate, &site.ID,
		fmt.Sprintf("created site %s (%s)", site.Name, site.Domain),
		map[string]any{"name": site.Name, "domain": site.Domain})
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	if !s.sitesReady(w) {
		return
	}
	siteID := chi.URLParam(r, "siteId")
	req, ok := decodeSiteRequest(w, r)
	if !ok {
		return
	}
	if req.Name == nil && req.Domain == nil {
		writeAPIError(w, http.StatusBadRequest, "name or domain is required", nil)
		return
	}

	site, err := s.sites.Update(r.Context(), siteID, sites.Update{Name: req.Name, Domain: req.Domain})
	if err != nil {
		s.writeSiteError(w, r, "update site failed", err, siteID)
		return
	}
	s.logAudit(r.Context(), actorFromRequest(r), audit.OperationSiteUpdate, &site.ID,
		fmt.Sprintf("updated site %s (%s)", site.Name, site.Domain),
		map[string]any{"name": site.Name, "domain": site.Domain})
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if !s.sitesReady(w) {
		return
	}
	siteID := chi.URLParam(r, "siteId")
	if err := s.sites.Delete(r.Context(), siteID); err != nil {
		s.writeSiteError(w, r, "delete site failed", err, siteID)
		return
	}
	s.ingest.Sites().Forget(siteID)
	s.logAudit(r.Context(), actorFromRequest(r), audit.OperationSiteDelete, &siteID,
		fmt.Sprintf("deleted site %s with its events and sessions", siteID), nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sitesReady(w http.ResponseWriter) bool {
	if s.sites == nil || s.ingest == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return false
	}
	return true
}

func decodeSiteRequest(w http.ResponseWriter, r *http.Request) (siteRequest, bool) {
	var req siteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBodyBytes)).Decode(&req); err != nil {
		if isMaxBytesError(err) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return req, false
		}
		writeAPIError(w, http.StatusBadRequest, "invalid request body", []string{err.Error()})
		return req, false
	}
	return req, true
}

func (s *Server) writeSiteError(w http.ResponseWriter, r *http.Request, message string, err error, siteID string) {
	var invalid *sites.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		writeAPIError(w, http.StatusBadRequest, invalid.Error(), nil)
	case errors.Is(err, sites.ErrSiteNotFound):
		writeAPIError(w, http.StatusNotFound, fmt.Sprintf("site %q not found", siteID), nil)
	case errors.Is(err, sites.ErrDomainTaken):
		writeAPIError(w, http.StatusConflict, err.Error(), nil)
	default:
		s.writeInternalAPIError(w, r, message, err, "site_id", siteID)
	}
}

func (s *Server) seedDemoSite(ctx context.Context) error {
	created, err := s.sites.EnsureSite(ctx, DefaultDemoSiteID, "Demo Site", "localhost")
	if err != nil {
		return fmt.Errorf("seed demo site: %w", err)
	}
	if created {
		s.logger.Info("seeded demo site", "site_id", DefaultDemoSiteID)
	}
	return nil
}
