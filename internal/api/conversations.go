package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mpm/stuplan/internal/connector"
	"github.com/mpm/stuplan/internal/conversation"
)

type startRequest struct {
	UserID       string `json:"userId"`
	UniversityID int    `json:"universityId"`
}

type skipRequest struct {
	Tool string `json:"tool"`
}

type navigateRequest struct {
	Step string `json:"step"`
}

type conversationResponse struct {
	State    conversation.State    `json:"state"`
	Progress conversation.Progress `json:"progress"`
}

// Start creates a conversation.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	resp, err := h.processor.Start(r.Context(), req.UserID, req.UniversityID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, resp)
}

// List returns the recent conversations index.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.processor.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, items)
}

// Get returns a conversation with its progress summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.processor.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, conversationResponse{
		State:    *state,
		Progress: conversation.GetConversationProgress(*state),
	})
}

// Delete removes a conversation.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.processor.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteTool applies a tool result. The body is the raw result.
func (h *Handler) CompleteTool(w http.ResponseWriter, r *http.Request) {
	tool, err := connector.ParseTool(chi.URLParam(r, "tool"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.processor.CompleteTool(r.Context(), chi.URLParam(r, "id"), tool, json.RawMessage(body))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Skip skips the step of the given tool.
func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tool, err := connector.ParseTool(req.Tool)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp, err := h.processor.Skip(r.Context(), chi.URLParam(r, "id"), tool)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Navigate moves the conversation back to an earlier step. A refused
// navigation is still 200 with a warning and the unchanged state.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeBody(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	step, err := conversation.ParseStep(req.Step)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.processor.Navigate(r.Context(), chi.URLParam(r, "id"), step)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Generate runs plan generation.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.processor.Generate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}
