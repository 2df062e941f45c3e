package api

import (
	"net/http"

	"tailorshop/m/internal/accounts"
)

type userRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
	GroupID  int64  `json:"group_id" validate:"required,gt=0"`
}

type userCreatedResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.accounts.Groups(r.Context())
	if err != nil {
		h.respondStoreError(w, r, err, "unable to fetch groups")
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		h.respondStoreError(w, r, err, "unable to fetch users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !h.bind(w, r, &req) {
		return
	}
	user, err := h.accounts.Create(r.Context(), accounts.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		GroupID:  req.GroupID,
	})
	if err != nil {
		h.respondStoreError(w, r, err, "unable to create user")
		return
	}
	respondJSON(w, http.StatusCreated, userCreatedResponse{ID: user.ID, Message: "user created"})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.accounts.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, r, err, "unable to delete user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
