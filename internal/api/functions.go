package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/blob"
)

func (s *Server) handleVintography(w http.ResponseWriter, r *http.Request, user auth.User) {
	var req adapter.ProcessImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.Images.Process(r.Context(), user, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOptimise(w http.ResponseWriter, r *http.Request, user auth.User) {
	var req adapter.OptimiseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.Optimiser.Optimise(r.Context(), user, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePriceCheck(w http.ResponseWriter, r *http.Request, user auth.User) {
	var req adapter.PriceCheckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.Pricing.Check(r.Context(), user, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, user auth.User) {
	var req adapter.ImportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if s.Importer == nil {
		writeError(w, http.StatusServiceUnavailable, "Import is not available")
		return
	}
	item, err := s.Importer.Import(r.Context(), req.URL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.Info().Str("userId", user.ID).Str("url", req.URL).Msg("listing imported")
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, user auth.User) {
	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	url, err := s.storeUpload(user.ID, filename, data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adapter.UploadResult{URL: url})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, user auth.User) {
	if s.Billing == nil {
		writeError(w, http.StatusServiceUnavailable, "Stripe not configured")
		return
	}
	var req adapter.CheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.Billing.CreateCheckout(r.Context(), user, r.Header.Get("Origin"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.Billing == nil {
		writeError(w, http.StatusServiceUnavailable, "Stripe not configured")
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := s.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// readUpload reads the multipart "file" field.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return "", nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return "", nil, false
	}
	return header.Filename, data, true
}

// storeUpload normalises a photo and stores it under the user's uploads.
func (s *Server) storeUpload(userID, filename string, data []byte) (string, error) {
	if s.Blobs == nil {
		return "", apierror.New(http.StatusServiceUnavailable, "Uploads are not configured")
	}
	normalised, err := blob.NormaliseImage(data)
	if err != nil {
		return "", apierror.Wrap(http.StatusBadRequest, "Unsupported image. Upload a JPEG or PNG photo.", err)
	}
	key := fmt.Sprintf("uploads/%s/%s.jpg", userID, uuid.New())
	url, err := s.Blobs.Put(key, normalised)
	if err != nil {
		return "", apierror.Wrap(http.StatusInternalServerError, "Failed to store the photo", err)
	}
	log.Info().
		Str("userId", userID).
		Str("filename", filepath.Base(filename)).
		Int("bytes", len(normalised)).
		Msg("photo uploaded")
	return url, nil
}
