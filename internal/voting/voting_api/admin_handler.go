package voting_api

import (
	"net/http"

	"ms-voting/internal/models"
	"ms-voting/internal/utils"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	resp, err := h.Service.Login(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Statistics(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.Reconcile(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) ResetVotes(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.ResetVotes(r.Context(), principal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("All votes have been reset", result))
}

// Clubs

func (h *Handler) ListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.Service.ListClubs(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, clubs)
}

func (h *Handler) CreateClub(w http.ResponseWriter, r *http.Request) {
	var req models.NewClub
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	club, err := h.Service.CreateClub(r.Context(), principal(r), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, club)
}

func (h *Handler) CreateClubsBulk(w http.ResponseWriter, r *http.Request) {
	var req models.BulkClubsRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	resp, err := h.Service.CreateClubs(r.Context(), principal(r), req.Clubs)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) DeleteClub(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.DeleteClub(r.Context(), principal(r), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Club deleted", nil))
}

func (h *Handler) DeleteAllClubs(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.DeleteAllClubs(r.Context(), principal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("All clubs have been deleted", result))
}

// AssignStand handles PUT /clubs/{id}/stand {"stand_id": 3}; null unassigns.
func (h *Handler) AssignStand(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var req models.AssignStandRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := h.Service.AssignStand(r.Context(), principal(r), id, req.StandID); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Stand assignment updated", req))
}

// Students

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Service.ListStudents(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, students)
}

func (h *Handler) CountStudents(w http.ResponseWriter, r *http.Request) {
	count, err := h.Service.CountStudents(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req models.NewStudent
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	student, err := h.Service.CreateStudent(r.Context(), principal(r), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, student)
}

func (h *Handler) CreateStudentsBulk(w http.ResponseWriter, r *http.Request) {
	var req models.BulkStudentsRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	resp, err := h.Service.CreateStudents(r.Context(), principal(r), req.Students)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) BatchGenerateStudents(w http.ResponseWriter, r *http.Request) {
	var req models.BatchGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	resp, err := h.Service.GenerateStudents(r.Context(), principal(r), req.Count)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Service.DeleteStudent(r.Context(), principal(r), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Student deleted", nil))
}

func (h *Handler) DeleteAllStudents(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.DeleteAllStudents(r.Context(), principal(r))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("All students have been deleted", result))
}

// Stands

func (h *Handler) ListStands(w http.ResponseWriter, r *http.Request) {
	stands, err := h.Service.ListStands(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stands)
}

func (h *Handler) UpdateStand(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var patch models.StandPatch
	if err := decodeJSON(r, &patch); err != nil {
		utils.WriteError(w, err)
		return
	}

	view, err := h.Service.UpdateStand(r.Context(), principal(r), id, patch)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, view)
}
