package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxDocumentSize caps a single uploaded document.
const MaxDocumentSize = 10 << 20

type DocumentHandler struct {
	documentService service.DocumentService
}

func NewDocumentHandler(documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.POST("/:id/proforma", middleware.RequireRole(model.RoleRequester), h.UploadProforma)
		requests.POST("/:id/receipt", middleware.RequireRole(model.RoleRequester), h.UploadReceipt)
		requests.GET("/:id/documents", h.GetDocuments)
	}
}

// UploadProforma attaches the vendor proforma and queues its extraction
// @Summary      Upload proforma
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true  "Request ID"
// @Param        file  formData  file    true  "Proforma document"
// @Success      202   {object}  response.Response{data=service.UploadResult}
// @Router       /api/requests/{id}/proforma [post]
func (h *DocumentHandler) UploadProforma(c *gin.Context) {
	h.upload(c, h.documentService.UploadProforma)
}

// UploadReceipt attaches the receipt of a paid request and queues its validation
// @Summary      Upload receipt
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true  "Request ID"
// @Param        file  formData  file    true  "Receipt document"
// @Success      202   {object}  response.Response{data=service.UploadResult}
// @Failure      422   {object}  response.Response
// @Router       /api/requests/{id}/receipt [post]
func (h *DocumentHandler) UploadReceipt(c *gin.Context) {
	h.upload(c, h.documentService.UploadReceipt)
}

// GetDocuments returns the extraction state of the proforma and receipt
// @Summary      Get documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.DocumentsView}
// @Router       /api/requests/{id}/documents [get]
func (h *DocumentHandler) GetDocuments(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	docs, err := h.documentService.GetDocuments(c.Request.Context(), id, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, docs))
}

type uploadFunc func(ctx context.Context, requestID uuid.UUID, principal model.Principal, dto service.UploadDTO) (*service.UploadResult, error)

func (h *DocumentHandler) upload(c *gin.Context, fn uploadFunc) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	dto, err := readUpload(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := fn(c.Request.Context(), id, principal, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Success(http.StatusAccepted, result))
}

func readUpload(c *gin.Context) (service.UploadDTO, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return service.UploadDTO{}, fmt.Errorf("file is required: %w", err)
	}
	if fh.Size > MaxDocumentSize {
		return service.UploadDTO{}, fmt.Errorf("file exceeds %d bytes", MaxDocumentSize)
	}

	f, err := fh.Open()
	if err != nil {
		return service.UploadDTO{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxDocumentSize+1))
	if err != nil {
		return service.UploadDTO{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return service.UploadDTO{}, fmt.Errorf("file exceeds %d bytes", MaxDocumentSize)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return service.UploadDTO{FileName: fh.Filename, ContentType: contentType, Data: data}, nil
}
