// Package handler содержит HTTP-обработчики API договоров.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/realty-contracts/internal/lifecycle"
	"github.com/mmeshcher/realty-contracts/internal/model"
	"github.com/mmeshcher/realty-contracts/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Create(ctx context.Context, d model.Draft) (int64, error)
	Get(ctx context.Context, id int64) (*service.Snapshot, error)
	History(ctx context.Context, id int64) ([]model.HistoryEntry, error)
	UpdateBasicInfo(ctx context.Context, id int64, d model.Draft) (*service.Snapshot, error)
	UpdateDocuments(ctx context.Context, id int64, keep []model.Document, files []model.Upload) (*service.Snapshot, error)
	AdvanceStatus(ctx context.Context, id int64, next model.Status) (*service.Snapshot, error)
	ConfirmStatus(ctx context.Context, id int64, terminal model.Status, expectedEnd *time.Time, confirmed bool) (*service.Snapshot, error)
	Delete(ctx context.Context, id int64, confirmed bool) error
	Policy() lifecycle.Policy
}

// Handler реализует HTTP-обработчики API договоров.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type statusResponse struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Terminal bool   `json:"terminal"`
}

type historyResponse struct {
	PrevStatus    string `json:"prevStatus"`
	CurrentStatus string `json:"currentStatus"`
	ChangedAt     string `json:"changedAt"`
}

type contractResponse struct {
	ID                      int64             `json:"id"`
	Category                *string           `json:"category"`
	Status                  statusResponse    `json:"status"`
	ContractDate            *string           `json:"contractDate"`
	ContractStartDate       *string           `json:"contractStartDate"`
	ContractEndDate         *string           `json:"contractEndDate"`
	ExpectedContractEndDate *string           `json:"expectedContractEndDate"`
	PropertyUID             int64             `json:"propertyUid"`
	PropertyAddress         string            `json:"propertyAddress"`
	Deposit                 int64             `json:"deposit"`
	MonthlyRent             int64             `json:"monthlyRent"`
	Price                   int64             `json:"price"`
	LessorOrSellers         []model.Party     `json:"lessorOrSellers"`
	LesseeOrBuyers          []model.Party     `json:"lesseeOrBuyers"`
	Documents               []model.Document  `json:"documents"`
	AllowedNextStatuses     []string          `json:"allowedNextStatuses"`
	History                 []historyResponse `json:"history"`
}

type violationResponse struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error      string              `json:"error"`
	Violations []violationResponse `json:"violations,omitempty"`
	Contract   *contractResponse   `json:"contract,omitempty"`
}

type statusChangeRequest struct {
	Status                  string `json:"status"`
	ExpectedContractEndDate string `json:"expectedContractEndDate"`
	Confirmed               bool   `json:"confirmed"`
}

// maxMultipartMemory ограничивает часть формы, хранимую в памяти.
const maxMultipartMemory = 32 << 20

// ListStatuses возвращает справочник статусов в порядке отображения.
func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	resp := make([]statusResponse, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		resp = append(resp, toStatusResponse(s))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CreateContract создаёт договор.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	id, err := h.service.Create(r.Context(), draft)
	if err != nil {
		h.writeError(w, "create contract", err, nil)
		return
	}

	w.Header().Set("Location", "/api/contracts/"+strconv.FormatInt(id, 10))
	h.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// GetContract возвращает договор с журналом статусов.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, "get contract", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toContractResponse(snap))
}

// GetHistory возвращает журнал статусов договора.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.writeError(w, "get history", err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, toHistoryResponse(entries))
}

// UpdateContract сохраняет основные поля договора.
func (h *Handler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	snap, err := h.service.UpdateBasicInfo(r.Context(), id, draft)
	if err != nil {
		h.writeError(w, "update contract", err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toContractResponse(snap))
}

// UpdateDocuments заменяет вложения договора. Форма содержит поле
// existingDocuments с JSON-списком оставляемых файлов и новые файлы в поле files.
func (h *Handler) UpdateDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, "parse documents form", service.ErrFileTooLarge, nil)
			return
		}
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var keep []model.Document
	if raw := r.FormValue("existingDocuments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &keep); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	headers := r.MultipartForm.File["files"]
	uploads := make([]model.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.logger.Error("open uploaded file", zap.Error(err), zap.String("file", fh.Filename))
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		defer f.Close()

		uploads = append(uploads, model.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	snap, err := h.service.UpdateDocuments(r.Context(), id, keep, uploads)
	if err != nil {
		h.writeError(w, "update documents", err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toContractResponse(snap))
}

// AdvanceStatus переводит договор на следующий статус основного пути.
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	next := model.Status(req.Status)
	if !next.Valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	snap, err := h.service.AdvanceStatus(r.Context(), id, next)
	if err != nil {
		h.writeError(w, "advance status", err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toContractResponse(snap))
}

// ChangeStatus переводит договор в CANCELLED или TERMINATED после подтверждения.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	terminal := model.Status(req.Status)
	if !terminal.Valid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	expectedEnd, err := model.ParseDate(req.ExpectedContractEndDate)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	snap, err := h.service.ConfirmStatus(r.Context(), id, terminal, expectedEnd, req.Confirmed)
	if err != nil {
		h.writeError(w, "change status", err, snap)
		return
	}
	h.writeJSON(w, http.StatusOK, h.toContractResponse(snap))
}

// DeleteContract удаляет договор. Требуется параметр confirm=true.
func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}

	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.service.Delete(r.Context(), id, confirmed); err != nil {
		h.writeError(w, "delete contract", err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) contractID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (model.Draft, bool) {
	var p model.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return model.Draft{}, false
	}
	d, err := p.Draft()
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return model.Draft{}, false
	}
	return d, true
}

// writeError сопоставляет категорию ошибки с HTTP-статусом. snap передаётся,
// если после неудачной записи удалось перечитать договор.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error, snap *service.Snapshot) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err))
	}

	resp := errorResponse{Error: service.UserMessage(err)}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			resp.Violations = append(resp.Violations, violationResponse(v))
		}
	}
	if snap != nil {
		c := h.toContractResponse(snap)
		resp.Contract = &c
	}

	h.writeJSON(w, code, resp)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, model.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func toStatusResponse(s model.Status) statusResponse {
	info, _ := s.Info()
	return statusResponse{
		Code:     string(s),
		Label:    info.Label,
		Color:    info.Color,
		Terminal: info.Terminal,
	}
}

func toHistoryResponse(entries []model.HistoryEntry) []historyResponse {
	resp := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyResponse{
			PrevStatus:    string(e.PrevStatus),
			CurrentStatus: string(e.CurrentStatus),
			ChangedAt:     e.ChangedAt.Format(time.RFC3339),
		})
	}
	return resp
}

func (h *Handler) toContractResponse(snap *service.Snapshot) contractResponse {
	c := snap.Contract

	var category *string
	if c.Category != nil {
		v := string(*c.Category)
		category = &v
	}

	next := h.service.Policy().AllowedNext(c.Status)
	allowed := make([]string, 0, len(next))
	for _, s := range next {
		allowed = append(allowed, string(s))
	}

	return contractResponse{
		ID:                      c.ID,
		Category:                category,
		Status:                  toStatusResponse(c.Status),
		ContractDate:            dateString(c.ContractDate),
		ContractStartDate:       dateString(c.ContractStartDate),
		ContractEndDate:         dateString(c.ContractEndDate),
		ExpectedContractEndDate: dateString(c.ExpectedContractEndDate),
		PropertyUID:             c.PropertyID,
		PropertyAddress:         c.PropertyAddress,
		Deposit:                 c.Deposit,
		MonthlyRent:             c.MonthlyRent,
		Price:                   c.Price,
		LessorOrSellers:         nonNil(c.LessorOrSellerParties),
		LesseeOrBuyers:          nonNil(c.LesseeOrBuyerParties),
		Documents:               nonNil(c.Documents),
		AllowedNextStatuses:     allowed,
		History:                 toHistoryResponse(snap.History),
	}
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := model.FormatDate(t)
	return &s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
