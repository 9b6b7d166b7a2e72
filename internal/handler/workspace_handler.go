package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nestdrive/internal/auth"
	"nestdrive/internal/domain"
	"nestdrive/internal/service"
	"nestdrive/internal/service/s3"
)

// WorkspaceHandler — HTTP-поверхность над менеджером папок и файлов.
type WorkspaceHandler struct {
	manager service.FolderManager
	blobs   s3.Storage
}

func NewWorkspaceHandler(manager service.FolderManager, blobs s3.Storage) *WorkspaceHandler {
	return &WorkspaceHandler{manager: manager, blobs: blobs}
}

// writeError переводит доменные ошибки в HTTP-статусы.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrNotAFolder), errors.Is(err, domain.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("[Handler] Internal error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Handler] Error encoding response: %v", err)
	}
}

func requestUser(r *http.Request) domain.UserInfo {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

func (h *WorkspaceHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder := &domain.Element{Name: req.Name}
	created, err := h.manager.CreateFolder(r.Context(), req.ParentID, folder, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UploadFile принимает multipart-форму: поле file с содержимым и
// необязательное поле parent_id.
func (h *WorkspaceHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	blobID := uuid.New().String()
	if err := h.blobs.Write(r.Context(), blobID, file); err != nil {
		log.Printf("[Handler] Failed to upload blob: %v", err)
		http.Error(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc := &domain.Element{
		Name:   header.Filename,
		BlobID: blobID,
		Metadata: &domain.Metadata{
			ContentType: contentType,
			Size:        header.Size,
			Filename:    header.Filename,
		},
	}

	var parentID *string
	if p := r.FormValue("parent_id"); p != "" {
		parentID = &p
	}

	added, err := h.manager.AddFile(r.Context(), parentID, doc, requestUser(r))
	if err != nil {
		// Строка не создана: блоб больше никому не нужен
		if removeErr := h.blobs.Remove(r.Context(), blobID); removeErr != nil {
			log.Printf("[Handler] Failed to remove orphan blob %s: %v", blobID, removeErr)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

// UpdateFile заменяет содержимое и метаданные существующего файла.
func (h *WorkspaceHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc := &domain.Element{}
	var parentID *string
	if p := r.FormValue("parent_id"); p != "" {
		parentID = &p
	}
	if name := r.FormValue("name"); name != "" {
		doc.Name = name
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		blobID := uuid.New().String()
		if err := h.blobs.Write(r.Context(), blobID, file); err != nil {
			log.Printf("[Handler] Failed to upload blob: %v", err)
			http.Error(w, "Failed to store file", http.StatusInternalServerError)
			return
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		doc.BlobID = blobID
		doc.Metadata = &domain.Metadata{
			ContentType: contentType,
			Size:        header.Size,
			Filename:    header.Filename,
		}
		if doc.Name == "" {
			doc.Name = header.Filename
		}
	}

	updated, err := h.manager.UpdateFile(r.Context(), id, parentID, doc, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *WorkspaceHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	el, err := h.manager.Info(r.Context(), chi.URLParam(r, "id"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (h *WorkspaceHandler) ListFolder(w http.ResponseWriter, r *http.Request) {
	elements, err := h.manager.List(r.Context(), chi.URLParam(r, "id"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

// GetTree возвращает видимые корни (или указанную папку) со всеми потомками.
func (h *WorkspaceHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	var fromID *string
	if from := r.URL.Query().Get("from"); from != "" {
		fromID = &from
	}
	elements, err := h.manager.ListRecursively(r.Context(), fromID, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

type queryRequest struct {
	Kind        *int                   `json:"kind,omitempty"`
	ParentID    *string                `json:"parent_id,omitempty"`
	Shared      bool                   `json:"shared"`
	Action      string                 `json:"action,omitempty"`
	Trash       string                 `json:"trash,omitempty"`
	NamePrefix  string                 `json:"name_prefix,omitempty"`
	FullText    []string               `json:"full_text,omitempty"`
	Application string                 `json:"application,omitempty"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Skip        int                    `json:"skip"`
	Limit       int                    `json:"limit"`
	Recursive   bool                   `json:"recursive"`
}

// Query — произвольная выборка элементов в пределах видимости пользователя.
func (h *WorkspaceHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	q := domain.ElementQuery{
		ParentID:     req.ParentID,
		Visibility:   domain.VisibilityInherited,
		Action:       req.Action,
		NamePrefix:   req.NamePrefix,
		FullText:     req.FullText,
		Application:  req.Application,
		Params:       req.Params,
		Skip:         req.Skip,
		Limit:        req.Limit,
		Hierarchical: req.Recursive,
	}
	if req.Shared {
		q.Visibility = domain.VisibilityShared
	}
	if req.Kind != nil {
		q.Kind = domain.KindOf(domain.ElementKind(*req.Kind))
	}
	switch req.Trash {
	case "only":
		q.Trash = domain.TrashOnly
	case "any":
		q.Trash = domain.TrashAny
	default:
		q.Trash = domain.TrashExclude
	}

	elements, err := h.manager.FindByQuery(r.Context(), q, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elements)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *WorkspaceHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.manager.Rename(r.Context(), chi.URLParam(r, "id"), req.Name, requestUser(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	IDs           []string `json:"ids,omitempty"`
	DestinationID string   `json:"destination_id"`
}

func (h *WorkspaceHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	moved, err := h.manager.Move(r.Context(), chi.URLParam(r, "id"), req.DestinationID, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

func (h *WorkspaceHandler) MoveAll(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	moved, err := h.manager.MoveAll(r.Context(), req.IDs, req.DestinationID, requestUser(r))
	if err != nil && len(moved) == 0 {
		writeError(w, err)
		return
	}
	// Частичный результат: перенесённые id вместе с первой ошибкой
	response := map[string]interface{}{"moved": moved}
	status := http.StatusOK
	if err != nil {
		response["error"] = err.Error()
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, response)
}

type copyRequest struct {
	IDs           []string `json:"ids,omitempty"`
	DestinationID *string  `json:"destination_id,omitempty"`
}

func (h *WorkspaceHandler) Copy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	copied, err := h.manager.Copy(r.Context(), chi.URLParam(r, "id"), req.DestinationID, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, copied)
}

func (h *WorkspaceHandler) CopyAll(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	copied, err := h.manager.CopyAll(r.Context(), req.IDs, req.DestinationID, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, copied)
}

type shareRequest struct {
	IDs     []string `json:"ids,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
	GroupID string   `json:"group_id,omitempty"`
	Actions []string `json:"actions"`
	Remove  bool     `json:"remove"`
}

func (req shareRequest) operation(user domain.UserInfo) (domain.ShareOperation, error) {
	switch {
	case req.UserID != "" && !req.Remove:
		return domain.AddShareUser(user, req.UserID, req.Actions), nil
	case req.UserID != "" && req.Remove:
		return domain.RemoveShareUser(user, req.UserID, req.Actions), nil
	case req.GroupID != "" && !req.Remove:
		return domain.AddShareGroup(user, req.GroupID, req.Actions), nil
	case req.GroupID != "" && req.Remove:
		return domain.RemoveShareGroup(user, req.GroupID, req.Actions), nil
	}
	return domain.ShareOperation{}, fmt.Errorf("%w: user_id or group_id is required", domain.ErrInvalid)
}

func (h *WorkspaceHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	op, err := req.operation(requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	principals, err := h.manager.Share(r.Context(), chi.URLParam(r, "id"), op)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"principals": principals})
}

func (h *WorkspaceHandler) ShareAll(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	op, err := req.operation(requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	principals, err := h.manager.ShareAll(r.Context(), req.IDs, op)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"principals": principals})
}

func (h *WorkspaceHandler) Trash(w http.ResponseWriter, r *http.Request) {
	ids, err := h.manager.Trash(r.Context(), chi.URLParam(r, "id"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"trashed": ids})
}

func (h *WorkspaceHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ids, err := h.manager.Restore(r.Context(), chi.URLParam(r, "id"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"restored": ids})
}

func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.manager.Delete(r.Context(), chi.URLParam(r, "id"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]string, 0, len(deleted))
	for i := range deleted {
		ids = append(ids, deleted[i].ID.String())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"deleted": ids})
}

func (h *WorkspaceHandler) Download(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.DownloadFile(r.Context(), chi.URLParam(r, "id"), requestUser(r), w, r); err != nil {
		writeError(w, err)
	}
}

// DownloadMany отдаёт zip-архив из набора элементов (?ids=a,b,c).
func (h *WorkspaceHandler) DownloadMany(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		http.Error(w, "ids query parameter is required", http.StatusBadRequest)
		return
	}
	ids := make([]string, 0)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if err := h.manager.DownloadFiles(r.Context(), ids, requestUser(r), w, r); err != nil {
		writeError(w, err)
	}
}
