package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appI18n "github.com/pavelanni/papergen/internal/i18n"
	"github.com/pavelanni/papergen/internal/model"
	"github.com/pavelanni/papergen/internal/paper"
	"github.com/pavelanni/papergen/internal/processing"
	"github.com/pavelanni/papergen/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	processing *processing.Service
	assembler  *paper.Assembler
	validate   *validator.Validate
	config     model.GenerationConfig
	now        func() time.Time
}

// New creates a new Handler.
func New(s *store.Store, proc *processing.Service, cfg model.GenerationConfig) *Handler {
	return &Handler{
		store:      s,
		processing: proc,
		assembler:  paper.NewAssembler(paper.OptionsFrom(cfg)),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		config:     cfg,
		now:        time.Now,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/api/logout", h.handleLogout)

		r.Get("/api/courses", h.handleListCourses)
		r.Post("/api/courses", h.handleCreateCourse)
		r.Get("/api/courses/{code}/bank", h.handleGetBank)
		r.Post("/api/courses/{code}/bank", h.handleUploadBank)
		r.Get("/api/courses/{code}/bank/versions", h.handleListBankVersions)
		r.Post("/api/courses/{code}/processing", h.handleStartProcessing)
		r.Get("/api/courses/{code}/processing/{jobID}", h.handleProcessingStatus)

		r.Get("/api/templates/{examType}", h.handleTemplate)
		r.Post("/api/papers/validate", h.handleValidate)
		r.Post("/api/papers", h.handleGenerate)
		r.Get("/api/papers", h.handleListPapers)
		r.Get("/api/papers/{id}", h.handleGetPaper)
		r.Get("/api/papers/{id}/download", h.handleDownloadPaper)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// fail writes a localized error message.
func fail(w http.ResponseWriter, r *http.Request, status int, msgID string, data map[string]any) {
	writeJSON(w, status, errorResponse{Error: appI18n.Td(r.Context(), msgID, data)})
}

func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "path", r.URL.Path, "error", err)
	fail(w, r, http.StatusInternalServerError, "InternalError", nil)
}

// decode reads a JSON body into v and runs struct validation. It writes the
// error response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeOnly(w, r, v); err != nil {
		return false
	}
	return h.validateStruct(w, r, v)
}

// decodeOnly reads a JSON body into v, writing a 400 on failure.
func decodeOnly(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		fail(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": err.Error()})
		return err
	}
	return nil
}

// validateStruct checks validate tags and reports the first failing field.
func (h *Handler) validateStruct(w http.ResponseWriter, r *http.Request, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msgID := "FieldInvalid"
		if fe.Tag() == "required" {
			msgID = "FieldRequired"
		}
		fail(w, r, http.StatusBadRequest, msgID, map[string]any{"Field": fe.Namespace()})
		return false
	}
	fail(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": err.Error()})
	return false
}

// course loads the current educator's course named in the URL, writing a
// 404 when it does not exist.
func (h *Handler) course(w http.ResponseWriter, r *http.Request) *model.Course {
	user := model.UserFromContext(r.Context())
	code := chi.URLParam(r, "code")
	c, err := h.store.GetCourse(user.ID, code)
	if err != nil {
		internalError(w, r, "failed to get course", err)
		return nil
	}
	if c == nil {
		fail(w, r, http.StatusNotFound, "CourseNotFound", map[string]any{"Code": code})
		return nil
	}
	return c
}

type createCourseRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"max=200"`
	Semester string `json:"semester" validate:"max=32"`
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !h.decode(w, r, &req) {
		return
	}
	user := model.UserFromContext(r.Context())

	existing, err := h.store.GetCourse(user.ID, req.Code)
	if err != nil {
		internalError(w, r, "failed to get course", err)
		return
	}
	if existing != nil {
		fail(w, r, http.StatusConflict, "CourseExists", map[string]any{"Code": existing.Code})
		return
	}

	c, err := h.store.EnsureCourse(user.ID, req.Code, req.Name, req.Semester)
	if err != nil {
		internalError(w, r, "failed to create course", err)
		return
	}
	slog.Info("created course", "code", c.Code, "owner", user.Username)
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	courses, err := h.store.ListCourses(user.ID)
	if err != nil {
		internalError(w, r, "failed to list courses", err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

type bankResponse struct {
	Version *model.BankVersion  `json:"version"`
	Pool    model.CandidatePool `json:"pool"`
	Message string              `json:"message,omitempty"`
}

func (h *Handler) handleGetBank(w http.ResponseWriter, r *http.Request) {
	c := h.course(w, r)
	if c == nil {
		return
	}
	bv, pool, err := h.store.LatestBank(c.ID)
	if err != nil {
		internalError(w, r, "failed to load bank", err)
		return
	}
	if pool.Questions == nil {
		pool.Questions = []model.CandidateQuestion{}
	}
	if pool.Topics == nil {
		pool.Topics = []model.Topic{}
	}
	writeJSON(w, http.StatusOK, bankResponse{Version: bv, Pool: pool})
}

func (h *Handler) handleListBankVersions(w http.ResponseWriter, r *http.Request) {
	c := h.course(w, r)
	if c == nil {
		return
	}
	versions, err := h.store.ListBankVersions(c.ID)
	if err != nil {
		internalError(w, r, "failed to list bank versions", err)
		return
	}
	if versions == nil {
		versions = []model.BankVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

// handleUploadBank stores a processing result posted directly as a new bank
// version. Re-posting an unchanged file does not create a new version.
func (h *Handler) handleUploadBank(w http.ResponseWriter, r *http.Request) {
	c := h.course(w, r)
	if c == nil {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": err.Error()})
		return
	}

	key := fmt.Sprintf("course/%d/bank", c.ID)
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	storedHash, err := h.store.GetImportedFileHash(key)
	if err != nil {
		internalError(w, r, "failed to check import status", err)
		return
	}
	if storedHash == hash {
		bv, pool, err := h.store.LatestBank(c.ID)
		if err != nil {
			internalError(w, r, "failed to load bank", err)
			return
		}
		if bv != nil {
			slog.Info("bank unchanged, skipping", "course", c.Code, "version", bv.Version)
			writeJSON(w, http.StatusOK, bankResponse{Version: bv, Pool: pool})
			return
		}
	}

	pool, err := processing.DecodePool(bytes.NewReader(data))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": err.Error()})
		return
	}
	bv, err := h.store.SaveBankVersion(c.ID, pool, "upload")
	if err != nil {
		internalError(w, r, "failed to store bank", err)
		return
	}
	if err := h.store.SetImportedFileHash(key, hash); err != nil {
		slog.Error("failed to record import", "course", c.Code, "error", err)
	}
	msg := appI18n.Tpd(r.Context(), "BankStored", len(pool.Questions), map[string]any{"Version": bv.Version})
	writeJSON(w, http.StatusCreated, bankResponse{Version: bv, Pool: pool, Message: msg})
}

type startProcessingRequest struct {
	BankFile     string `json:"bank_file" validate:"required"`
	SyllabusFile string `json:"syllabus_file" validate:"required"`
}

func (h *Handler) handleStartProcessing(w http.ResponseWriter, r *http.Request) {
	c := h.course(w, r)
	if c == nil {
		return
	}
	var req startProcessingRequest
	if !h.decode(w, r, &req) {
		return
	}
	job, err := h.processing.Start(r.Context(), *c, req.BankFile, req.SyllabusFile)
	if errors.Is(err, processing.ErrNotConfigured) {
		fail(w, r, http.StatusServiceUnavailable, "ProcessingNotConfigured", nil)
		return
	}
	if err != nil {
		slog.Error("failed to start processing", "course", c.Code, "error", err)
		fail(w, r, http.StatusBadGateway, "ProcessingUnavailable", nil)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) handleProcessingStatus(w http.ResponseWriter, r *http.Request) {
	c := h.course(w, r)
	if c == nil {
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job, err := h.store.GetJob(jobID)
	if err != nil {
		internalError(w, r, "failed to get job", err)
		return
	}
	if job == nil || job.CourseID != c.ID {
		fail(w, r, http.StatusNotFound, "JobNotFound", nil)
		return
	}

	refreshed, err := h.processing.Refresh(r.Context(), jobID)
	if err != nil {
		// The stored state is still meaningful when the processor is down.
		slog.Warn("failed to refresh processing job", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusOK, job)
		return
	}
	writeJSON(w, http.StatusOK, refreshed)
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "examType")
	examType, ok := model.ParseExamType(raw)
	if !ok {
		fail(w, r, http.StatusBadRequest, "UnknownExamType", map[string]any{"ExamType": raw})
		return
	}
	slots, err := paper.DefaultSlots(examType)
	if err != nil {
		internalError(w, r, "failed to build default slots", err)
		return
	}
	tmpl, _ := paper.TemplateFor(examType)
	writeJSON(w, http.StatusOK, map[string]any{
		"exam_type":   examType,
		"title":       tmpl.Title,
		"max_marks":   tmpl.MaxMarks,
		"duration":    tmpl.Duration,
		"group_total": tmpl.GroupTotal,
		"slots":       slots,
	})
}
