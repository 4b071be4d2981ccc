// MedChain - Resilient Medical Records Backend
// Copyright 2026 MedChain Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/medchain-io/medchain

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medchain-io/medchain/internal/fallback"
	"github.com/medchain-io/medchain/internal/logging"
	"github.com/medchain-io/medchain/internal/models"
	"github.com/medchain-io/medchain/internal/store"
)

// CreateInstitution handles POST /api/institutions.
func (h *Handler) CreateInstitution(w http.ResponseWriter, r *http.Request) {
	var inst models.Institution
	if err := decodeJSON(w, r, &inst); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON payload", err)
		return
	}
	if apiErr := validateRequest(&inst); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	inst.ID = uuid.New().String()
	inst.CreatedAt = time.Now().UTC()
	h.createDocument(w, r, models.CollectionInstitutions, inst.WalletAddress, inst.Document())
}

// CreateDoctor handles POST /api/doctors.
func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	var doc models.Doctor
	if err := decodeJSON(w, r, &doc); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON payload", err)
		return
	}
	if apiErr := validateRequest(&doc); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	doc.ID = uuid.New().String()
	doc.CreatedAt = time.Now().UTC()
	h.createDocument(w, r, models.CollectionDoctors, doc.WalletAddress, doc.Document())
}

// CreatePatient handles POST /api/patients.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var pat models.Patient
	if err := decodeJSON(w, r, &pat); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON payload", err)
		return
	}
	if apiErr := validateRequest(&pat); apiErr != nil {
		respondValidationError(w, apiErr)
		return
	}

	pat.ID = uuid.New().String()
	pat.CreatedAt = time.Now().UTC()
	h.createDocument(w, r, models.CollectionPatients, pat.WalletAddress, pat.Document())
}

// ListInstitutions handles GET /api/institutions.
func (h *Handler) ListInstitutions(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, models.CollectionInstitutions)
}

// ListDoctors handles GET /api/doctors.
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, models.CollectionDoctors)
}

// ListPatients handles GET /api/patients.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, models.CollectionPatients)
}

// GetInstitution handles GET /api/institutions/{id}.
func (h *Handler) GetInstitution(w http.ResponseWriter, r *http.Request) {
	h.getDocument(w, r, models.CollectionInstitutions, "id", chi.URLParam(r, "id"))
}

// GetDoctor handles GET /api/doctors/{id}.
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	h.getDocument(w, r, models.CollectionDoctors, "id", chi.URLParam(r, "id"))
}

// GetPatient handles GET /api/patients/{id}.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	h.getDocument(w, r, models.CollectionPatients, "id", chi.URLParam(r, "id"))
}

// GetInstitutionByWallet handles GET /api/institutions/wallet/{wallet}.
func (h *Handler) GetInstitutionByWallet(w http.ResponseWriter, r *http.Request) {
	h.getDocument(w, r, models.CollectionInstitutions, fallback.NaturalKeyField,
		models.NormalizeWallet(chi.URLParam(r, "wallet")))
}

// GetDoctorByWallet handles GET /api/doctors/wallet/{wallet}.
func (h *Handler) GetDoctorByWallet(w http.ResponseWriter, r *http.Request) {
	h.getDocument(w, r, models.CollectionDoctors, fallback.NaturalKeyField,
		models.NormalizeWallet(chi.URLParam(r, "wallet")))
}

// GetPatientByWallet handles GET /api/patients/wallet/{wallet}.
func (h *Handler) GetPatientByWallet(w http.ResponseWriter, r *http.Request) {
	h.getDocument(w, r, models.CollectionPatients, fallback.NaturalKeyField,
		models.NormalizeWallet(chi.URLParam(r, "wallet")))
}

// respondValidationError sends a 400 with the structured validation payload.
func respondValidationError(w http.ResponseWriter, apiErr *models.APIError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: apiErr,
	})
}

// createDocument runs the resilient write path shared by all registries.
//
// Store reachable: duplicate wallet check, insert, 201. Store unreachable
// (no handle, or the write itself fails): the document goes to the fallback
// queue and the client gets 202 with the buffered record id. The client
// never sees a 5xx for store downtime on the write path.
func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request, collection, wallet string, doc store.Document) {
	started := time.Now()
	ctx := r.Context()
	naturalKey := models.NormalizeWallet(wallet)

	handle := h.conns.GetHandle(ctx)
	if handle == nil {
		h.bufferWrite(w, collection, naturalKey, doc, started)
		return
	}

	_, err := handle.FindOne(ctx, collection, fallback.NaturalKeyField, naturalKey)
	switch {
	case err == nil:
		respondError(w, http.StatusConflict, "DUPLICATE_ENTITY",
			"A record with this wallet address already exists", nil)
		return
	case errors.Is(err, store.ErrNotFound):
		// Free to insert.
	default:
		logging.Warn().Err(err).Str("collection", collection).Msg("Duplicate check failed, buffering write")
		h.bufferWrite(w, collection, naturalKey, doc, started)
		return
	}

	if err := handle.Insert(ctx, collection, doc); err != nil {
		logging.Warn().Err(err).Str("collection", collection).Msg("Insert failed, buffering write")
		h.bufferWrite(w, collection, naturalKey, doc, started)
		return
	}

	respondSuccess(w, http.StatusCreated, doc, started)
}

// bufferWrite enqueues the document for later replay and responds 202.
// A queue persist failure is the one case the write path surfaces as 500:
// the write would not survive a restart, so acceptance would be a lie.
func (h *Handler) bufferWrite(w http.ResponseWriter, collection, naturalKey string, doc store.Document, started time.Time) {
	id, err := h.buffer.Enqueue(collection, naturalKey, doc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to buffer write for later sync", err)
		return
	}

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status: "buffered",
		Data: models.BufferedWrite{
			ID:         id,
			Collection: collection,
			SyncStatus: "pending",
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

// listDocuments returns every document in a collection. Reads have no
// fallback path; a down store is reported as 503.
func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request, collection string) {
	started := time.Now()

	handle := h.conns.GetHandle(r.Context())
	if handle == nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Document store is unavailable", nil)
		return
	}

	docs, err := handle.Find(r.Context(), collection, nil)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Document store query failed", err)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"total":   len(docs),
		"results": docs,
	}, started)
}

// getDocument returns a single document matched by field=value.
func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request, collection, field, value string) {
	started := time.Now()

	handle := h.conns.GetHandle(r.Context())
	if handle == nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Document store is unavailable", nil)
		return
	}

	doc, err := handle.FindOne(r.Context(), collection, field, value)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No matching record found", nil)
	case err != nil:
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE",
			"Document store query failed", err)
	default:
		respondSuccess(w, http.StatusOK, doc, started)
	}
}
