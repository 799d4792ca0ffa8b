package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/benedict2310/slimlytics/internal/ingest"
	"github.com/benedict2310/slimlytics/internal/names"
)

const noscriptBeaconSuffix = "ns.gif"

// transparentGIF is a 1x1 transparent GIF89a.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00,
	0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02,
	0x44, 0x01, 0x00, 0x3b,
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "server is not ready", nil)
		return
	}
	if !acceptedTrackContentType(r.Header.Get("Content-Type")) {
		writeAPIError(w, http.StatusUnsupportedMediaType, "content type must be application/json or text/plain", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.maxBodyBytes()))
	if err != nil {
		if isMaxBytesError(err) {
			writeAPIError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		writeAPIError(w, http.StatusBadRequest, "read request body failed", []string{err.Error()})
		return
	}

	payload, err := ingest.ParsePayload(body)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if pathSite := chi.URLParam(r, "siteId"); pathSite != "" && payload.SiteID == "" && payload.LegacySiteID == "" {
		payload.SiteID = pathSite
	}

	_, err = s.ingest.Track(r.Context(), payload, s.requestMeta(r))
	if err != nil {
		var validationErr *ingest.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeAPIError(w, http.StatusBadRequest, validationErr.Error(), nil)
		case errors.Is(err, ingest.ErrUnknownSite):
			writeAPIError(w, http.StatusNotFound, "site not found", nil)
		default:
			s.writeInternalAPIError(w, r, "track event failed", err, "site_id", payload.SiteID)
		}
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "image") {
		writeTrackingGIF(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleNoscriptBeacon serves GET /t/{siteId}ns.gif for visitors without
// JavaScript. It always answers with the pixel.
func (s *Server) handleNoscriptBeacon(w http.ResponseWriter, r *http.Request) {
	siteID, ok := strings.CutSuffix(chi.URLParam(r, "siteId"), noscriptBeaconSuffix)
	if !ok || names.ValidateSiteID(siteID) != nil {
		writeAPIError(w, http.StatusNotFound, "not found", nil)
		return
	}
	defer writeTrackingGIF(w)

	if s.ingest == nil {
		return
	}
	pageURL := strings.TrimSpace(r.Header.Get("Referer"))
	if pageURL == "" {
		pageURL = "unknown"
	}
	payload := ingest.Payload{
		SiteID:    siteID,
		URL:       pageURL,
		VisitorID: "noscript",
		SessionID: "noscript",
		EventType: ingest.NoscriptEventType,
	}
	if _, err := s.ingest.Track(r.Context(), payload, s.requestMeta(r)); err != nil {
		s.logger.Debug("noscript beacon not recorded", "site_id", siteID, "error", err)
	}
}

func (s *Server) requestMeta(r *http.Request) ingest.RequestMeta {
	return ingest.RequestMeta{
		ClientIP:   ingest.ClientIP(r.Header),
		UserAgent:  r.Header.Get("User-Agent"),
		ReceivedAt: time.Now().UTC(),
	}
}

func acceptedTrackContentType(value string) bool {
	if strings.TrimSpace(value) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return false
	}
	switch mediaType {
	case "application/json", "text/plain":
		return true
	default:
		return false
	}
}

func writeTrackingGIF(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "image/gif")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(transparentGIF)
}
