package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/papergen/internal/i18n"
	"github.com/pavelanni/papergen/internal/model"
	"github.com/pavelanni/papergen/internal/paper"
)

type validateRequest struct {
	ExamType string               `json:"exam_type" validate:"required"`
	Slots    []model.QuestionSlot `json:"slots" validate:"dive"`
}

type generateRequest struct {
	ExamType   string               `json:"exam_type" validate:"required"`
	Semester   string               `json:"semester" validate:"required,max=32"`
	CourseCode string               `json:"course_code" validate:"required"`
	Date       string               `json:"date" validate:"max=32"`
	Slots      []model.QuestionSlot `json:"slots" validate:"required,dive"`
}

// validationResponse is the 422 body for configuration errors. It carries
// the structured fields so that clients can highlight the failing input.
type validationResponse struct {
	Kind     string   `json:"kind"`
	Group    string   `json:"group,omitempty"`
	Actual   *int     `json:"actual,omitempty"`
	Expected int      `json:"expected,omitempty"`
	SlotIDs  []string `json:"slot_ids,omitempty"`
	SlotID   string   `json:"slot_id,omitempty"`
	Message  string   `json:"message"`
}

type generateResponse struct {
	ID          string `json:"id"`
	BankVersion int    `json:"bank_version,omitempty"`
	model.GeneratedPaper
}

// normalizeSlots lower-cases difficulties so that "Easy" passes DTO validation.
func normalizeSlots(slots []model.QuestionSlot) {
	for i := range slots {
		slots[i].DifficultyTarget = model.Difficulty(strings.ToLower(strings.TrimSpace(string(slots[i].DifficultyTarget))))
	}
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeOnly(w, r, &req); err != nil {
		return
	}
	normalizeSlots(req.Slots)
	if !h.validateStruct(w, r, &req) {
		return
	}
	examType, ok := model.ParseExamType(req.ExamType)
	if !ok {
		fail(w, r, http.StatusBadRequest, "UnknownExamType", map[string]any{"ExamType": req.ExamType})
		return
	}
	if err := paper.Validate(examType, req.Slots); err != nil {
		h.writeConfigError(w, r, req.ExamType, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": appI18n.T(r.Context(), "ConfigurationValid"),
	})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeOnly(w, r, &req); err != nil {
		return
	}
	normalizeSlots(req.Slots)
	if !h.validateStruct(w, r, &req) {
		return
	}
	examType, ok := model.ParseExamType(req.ExamType)
	if !ok {
		fail(w, r, http.StatusBadRequest, "UnknownExamType", map[string]any{"ExamType": req.ExamType})
		return
	}

	user := model.UserFromContext(r.Context())
	c, err := h.store.GetCourse(user.ID, req.CourseCode)
	if err != nil {
		internalError(w, r, "failed to get course", err)
		return
	}
	if c == nil {
		fail(w, r, http.StatusNotFound, "CourseNotFound", map[string]any{"Code": req.CourseCode})
		return
	}

	bv, pool, err := h.store.LatestBank(c.ID)
	if err != nil {
		internalError(w, r, "failed to load bank", err)
		return
	}

	header := paper.RenderHeader{
		Course:   c.Code,
		Semester: req.Semester,
		Date:     req.Date,
	}
	if c.Name != "" {
		header.Course = c.Code + " - " + c.Name
	}
	if header.Date == "" {
		header.Date = h.now().Format("02-01-2006")
	}

	cfg := model.ExamConfiguration{
		ExamType:   examType,
		Semester:   req.Semester,
		CourseCode: c.Code,
		Slots:      req.Slots,
	}
	generated, err := h.assembler.Generate(cfg, pool, header)
	if err != nil {
		h.writeConfigError(w, r, req.ExamType, err)
		return
	}

	rec := model.PaperRecord{
		CourseID:     c.ID,
		OwnerID:      user.ID,
		ExamType:     examType,
		Semester:     req.Semester,
		Assigned:     generated.Assigned,
		RenderedText: generated.RenderedText,
		Stats:        generated.Stats,
	}
	resp := generateResponse{GeneratedPaper: generated}
	if bv != nil {
		rec.BankVersionID = bv.ID
		resp.BankVersion = bv.Version
	}
	resp.ID, err = h.store.SavePaper(rec)
	if err != nil {
		internalError(w, r, "failed to save paper", err)
		return
	}
	slog.Info("generated paper", "id", resp.ID, "course", c.Code, "exam_type", examType,
		"from_bank", generated.Stats.FromBank, "generated", generated.Stats.Generated)
	writeJSON(w, http.StatusCreated, resp)
}

// writeConfigError maps core errors to HTTP responses. examType is the
// value the client sent.
func (h *Handler) writeConfigError(w http.ResponseWriter, r *http.Request, examType string, err error) {
	ctx := r.Context()

	var verr *paper.ValidationError
	if errors.As(err, &verr) {
		resp := validationResponse{
			Kind:     string(verr.Kind),
			Group:    verr.Group,
			Expected: verr.Expected,
			SlotIDs:  verr.SlotIDs,
		}
		switch verr.Kind {
		case paper.KindInvalidMarksTotal:
			actual := verr.Actual
			resp.Actual = &actual
			scope := appI18n.T(ctx, "ScopeSection")
			if verr.Scope == "question" {
				scope = appI18n.T(ctx, "ScopeQuestion")
			}
			resp.Message = appI18n.Td(ctx, "InvalidMarksTotal", map[string]any{
				"Scope": scope, "Group": verr.Group, "Actual": verr.Actual, "Expected": verr.Expected,
			})
		case paper.KindMissingTopic:
			resp.Message = appI18n.Tpd(ctx, "MissingTopic", len(verr.SlotIDs), map[string]any{
				"SlotIDs": strings.Join(verr.SlotIDs, ", "),
			})
		default:
			resp.Message = verr.Error()
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	var merr *paper.MalformedSlotError
	if errors.As(err, &merr) {
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Kind:    "malformed_slot",
			SlotID:  merr.SlotID,
			Message: appI18n.Td(ctx, "MalformedSlot", map[string]any{"SlotID": merr.SlotID, "Reason": merr.Reason}),
		})
		return
	}

	if errors.Is(err, paper.ErrUnknownExamType) {
		fail(w, r, http.StatusBadRequest, "UnknownExamType", map[string]any{"ExamType": examType})
		return
	}
	internalError(w, r, "paper generation failed", err)
}

// ownPaper loads a paper visible to the current user: its owner or an admin.
func (h *Handler) ownPaper(w http.ResponseWriter, r *http.Request) *model.PaperRecord {
	user := model.UserFromContext(r.Context())
	p, err := h.store.GetPaper(chi.URLParam(r, "id"))
	if err != nil {
		internalError(w, r, "failed to get paper", err)
		return nil
	}
	if p == nil || (p.OwnerID != user.ID && user.Role != model.UserRoleAdmin) {
		fail(w, r, http.StatusNotFound, "PaperNotFound", nil)
		return nil
	}
	return p
}

func (h *Handler) handleListPapers(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	papers, err := h.store.ListPapers(user.ID)
	if err != nil {
		internalError(w, r, "failed to list papers", err)
		return
	}

	type paperSummary struct {
		ID         string           `json:"id"`
		CourseCode string           `json:"course_code"`
		ExamType   model.ExamType   `json:"exam_type"`
		Semester   string           `json:"semester"`
		Stats      model.PaperStats `json:"stats"`
		CreatedAt  string           `json:"created_at"`
	}
	out := make([]paperSummary, 0, len(papers))
	for _, p := range papers {
		out = append(out, paperSummary{
			ID:         p.ID,
			CourseCode: p.CourseCode,
			ExamType:   p.ExamType,
			Semester:   p.Semester,
			Stats:      p.Stats,
			CreatedAt:  p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	if p := h.ownPaper(w, r); p != nil {
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *Handler) handleDownloadPaper(w http.ResponseWriter, r *http.Request) {
	p := h.ownPaper(w, r)
	if p == nil {
		return
	}
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	filename := fmt.Sprintf("%s_%s_%s.txt", p.CourseCode, p.ExamType, id)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write([]byte(p.RenderedText)); err != nil {
		slog.Error("failed to write paper", "id", p.ID, "error", err)
	}
}
