package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/bitfsorg/pledgesplit-go/archive"
	"github.com/bitfsorg/pledgesplit-go/rewards"
	"github.com/bitfsorg/pledgesplit-go/split"
	"github.com/bitfsorg/pledgesplit-go/store"
)

const maxBodyBytes = 1 << 20

type previewRequest struct {
	Pledges []split.Pledge `json:"pledges"`
	Shares  []split.Share  `json:"shares"`
	FeeBps  *uint32        `json:"fee_bps,omitempty"`
}

type splitRequest struct {
	Shares []split.Share `json:"shares"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case rewards.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrSplitNotFound),
		errors.Is(err, archive.ErrNotFound),
		errors.Is(err, rewards.ErrNoArchive):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrSplitExists),
		errors.Is(err, store.ErrPledgesChanged),
		errors.Is(err, store.ErrIssueLocked),
		errors.Is(err, store.ErrDuplicatePledge):
		writeError(w, http.StatusConflict, err.Error())
	default:
		a.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleSigner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pubkey":  a.svc.PublicKey(),
		"fee_bps": a.svc.Fee().BasisPoints,
	})
}

func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var fee *split.FeePolicy
	if req.FeeBps != nil {
		if *req.FeeBps > 10000 {
			writeError(w, http.StatusUnprocessableEntity, "fee_bps must be at most 10000")
			return
		}
		fee = &split.FeePolicy{BasisPoints: *req.FeeBps}
	}
	writeJSON(w, http.StatusOK, a.svc.Preview(req.Pledges, req.Shares, fee))
}

func (a *API) handleListPledges(w http.ResponseWriter, r *http.Request) {
	pledges, err := a.svc.ListPledges(mux.Vars(r)["issue_id"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pledges": pledges})
}

func (a *API) handleAddPledge(w http.ResponseWriter, r *http.Request) {
	var p split.Pledge
	if !decodeBody(w, r, &p) {
		return
	}
	stored, err := a.svc.AddPledge(mux.Vars(r)["issue_id"], p)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// handlePreviewIssue previews against stored pledges. Shares come from
// repeated ?share=name[:thousandths] parameters.
func (a *API) handlePreviewIssue(w http.ResponseWriter, r *http.Request) {
	shares, err := split.ParseShares(r.URL.Query()["share"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	preview, err := a.svc.PreviewIssue(mux.Vars(r)["issue_id"], shares)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handleSplitIssue(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := a.svc.SplitIssue(r.Context(), mux.Vars(r)["issue_id"], req.Shares)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleGetSplit(w http.ResponseWriter, r *http.Request) {
	rec, err := a.svc.GetSplit(mux.Vars(r)["issue_id"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, err := a.svc.ArchivedReceipt(mux.Vars(r)["digest"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
