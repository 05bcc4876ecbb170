package handler

import (
	"bytes"
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.POST("", middleware.RequireRole(model.RoleRequester), h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.PUT("/:id", middleware.RequireRole(model.RoleRequester), h.UpdateRequest)
		requests.DELETE("/:id", middleware.RequireRole(model.RoleRequester), h.DeleteRequest)
		requests.GET("/:id/purchase-order", h.GetPurchaseOrder)
		requests.GET("/:id/purchase-order/export", h.ExportPurchaseOrder)
	}
}

// CreateRequest submits a new purchase request
// @Summary      Create purchase request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRequestDTO  true  "Request payload"
// @Success      201      {object}  response.Response{data=model.PurchaseRequest}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	created, err := h.requestService.CreateRequest(c.Request.Context(), principal, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
}

// ListRequests returns the requests the caller works on
// @Summary      List purchase requests
// @Description  Requesters see their own requests, approvers the pending ones at their level, finance the approved ones
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)
	p := pagination.Parse(c)

	requests, total, err := h.requestService.ListRequests(c.Request.Context(), principal, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, requests, p.Page, p.Limit, total))
}

// GetRequest returns a request with its approvals, purchase order and documents
// @Summary      Get purchase request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	detail, err := h.requestService.GetRequest(c.Request.Context(), id, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// UpdateRequest edits a request that is not yet decided
// @Summary      Update purchase request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Request ID"
// @Param        payload  body      service.UpdateRequestDTO  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.PurchaseRequest}
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id} [put]
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	var req service.UpdateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	updated, err := h.requestService.UpdateRequest(c.Request.Context(), id, principal, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// DeleteRequest removes a pending request nobody has decided on
// @Summary      Delete purchase request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/requests/{id} [delete]
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	if err := h.requestService.DeleteRequest(c.Request.Context(), id, principal); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Request deleted"}))
}

// GetPurchaseOrder returns the order generated on full approval
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.PurchaseOrder}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id}/purchase-order [get]
func (h *RequestHandler) GetPurchaseOrder(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	po, err := h.requestService.GetPurchaseOrder(c.Request.Context(), id, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// ExportPurchaseOrder downloads the order as an xlsx workbook
// @Summary      Export purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id   path      string  true  "Request ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id}/purchase-order/export [get]
func (h *RequestHandler) ExportPurchaseOrder(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	var buf bytes.Buffer
	po, err := h.requestService.ExportPurchaseOrder(c.Request.Context(), id, principal, &buf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+po.PONumber+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
