package handlers

import (
	"github.com/gin-gonic/gin"

	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/http/v1/dto"
)

// DepartmentHandler manages the department directory.
type DepartmentHandler struct {
	*BaseHandler
	departments *numbering.Departments
}

func NewDepartmentHandler(base *BaseHandler, departments *numbering.Departments) *DepartmentHandler {
	return &DepartmentHandler{BaseHandler: base, departments: departments}
}

// Create adds a department.
// POST /numbering/departments
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	dep, err := h.departments.Create(c.Request.Context(), h.GetTenantID(c), req.Code, req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromDepartment(dep))
}

// List returns departments ordered by code.
// GET /numbering/departments
func (h *DepartmentHandler) List(c *gin.Context) {
	list, err := h.departments.List(c.Request.Context(), h.GetTenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromDepartments(list)))
}
