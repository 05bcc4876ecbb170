package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

// ApprovalHandler exposes the workflow transitions: decisions, clarification and payment.
type ApprovalHandler struct {
	workflowService service.WorkflowService
}

func NewApprovalHandler(workflowService service.WorkflowService) *ApprovalHandler {
	return &ApprovalHandler{workflowService: workflowService}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.POST("/:id/decisions", middleware.RequireRole(model.RoleApprover), h.SubmitDecision)
		requests.POST("/:id/clarification", middleware.RequireRole(model.RoleApprover), h.RequestClarification)
		requests.POST("/:id/clarification/response", middleware.RequireRole(model.RoleRequester), h.RespondToClarification)
		requests.PUT("/:id/payment", middleware.RequireRole(model.RoleFinance), h.UpdatePaymentStatus)
	}
}

// SubmitDecision approves or rejects a request at the caller's level
// @Summary      Submit approval decision
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Request ID"
// @Param        payload  body      service.DecisionDTO  true  "Decision payload"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/requests/{id}/decisions [post]
func (h *ApprovalHandler) SubmitDecision(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	var req service.DecisionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.workflowService.SubmitDecision(c.Request.Context(), id, principal, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RequestClarification sends a request back to its creator with a question
// @Summary      Request clarification
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Request ID"
// @Param        payload  body      service.ClarificationDTO  true  "Question"
// @Success      200      {object}  response.Response{data=model.PurchaseRequest}
// @Router       /api/requests/{id}/clarification [post]
func (h *ApprovalHandler) RequestClarification(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	var req service.ClarificationDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	updated, err := h.workflowService.RequestClarification(c.Request.Context(), id, principal, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// RespondToClarification answers the open question and returns the request to review
// @Summary      Respond to clarification
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Request ID"
// @Param        payload  body      service.ClarificationResponseDTO  true  "Answer"
// @Success      200      {object}  response.Response{data=model.PurchaseRequest}
// @Router       /api/requests/{id}/clarification/response [post]
func (h *ApprovalHandler) RespondToClarification(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	var req service.ClarificationResponseDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	updated, err := h.workflowService.RespondToClarification(c.Request.Context(), id, principal, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}

// UpdatePaymentStatus records the payment state of an approved request
// @Summary      Update payment status
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Request ID"
// @Param        payload  body      service.PaymentStatusDTO  true  "Payment status"
// @Success      200      {object}  response.Response{data=model.PurchaseRequest}
// @Failure      422      {object}  response.Response
// @Router       /api/requests/{id}/payment [put]
func (h *ApprovalHandler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}
	principal, _ := middleware.PrincipalFrom(c)

	var req service.PaymentStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	updated, err := h.workflowService.UpdatePaymentStatus(c.Request.Context(), id, principal, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, updated))
}
