package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-service/internal/api/dto"
	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/service"
	"github.com/spec-kit/case-service/pkg/validation"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// CasesHandler exposes the case lifecycle endpoints.
type CasesHandler struct {
	cases      *service.CaseService
	assignment *service.AssignmentService
	audit      *service.AuditService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(cases *service.CaseService, assignment *service.AssignmentService, audit *service.AuditService) *CasesHandler {
	return &CasesHandler{cases: cases, assignment: assignment, audit: audit}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateCaseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	created, err := h.cases.Create(c.UserContext(), user, service.CaseCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	view, err := h.cases.Get(c.UserContext(), user, created.ID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCaseViewResponse(*view)})
}

// ListCases GET /cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	filter := parseCaseFilter(c)
	views, err := h.cases.List(c.UserContext(), user, filter)
	if err != nil {
		return err
	}
	items := make([]dto.CaseResponse, 0, len(views))
	for _, view := range views {
		items = append(items, dto.NewCaseViewResponse(view))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"limit": filter.Limit, "offset": filter.Offset, "count": len(items)},
	})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	view, err := h.cases.Get(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseViewResponse(*view)})
}

// UpdateCase PATCH /cases/:id.
func (h *CasesHandler) UpdateCase(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateCaseRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updated, err := h.cases.Update(c.UserContext(), user, c.Params("id"), service.CaseUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return h.respondWithCase(c, user, updated.ID, http.StatusOK)
}

// Transition POST /cases/:id/transitions.
func (h *CasesHandler) Transition(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	moved, err := h.cases.Transition(c.UserContext(), user, c.Params("id"), service.TransitionInput{
		To:      domain.CaseStatus(strings.ToUpper(strings.TrimSpace(string(req.To)))),
		Comment: req.Comment,
	})
	if err != nil {
		return err
	}
	return h.respondWithCase(c, user, moved.ID, http.StatusOK)
}

// AvailableTransitions GET /cases/:id/transitions.
func (h *CasesHandler) AvailableTransitions(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	current, edges, err := h.cases.AvailableTransitions(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAvailableTransitionsResponse(current, edges)})
}

// Assign POST /cases/:id/assign.
func (h *CasesHandler) Assign(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	assigned, err := h.assignment.Assign(c.UserContext(), user, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return h.respondWithCase(c, user, assigned.ID, http.StatusOK)
}

// AuditTrail GET /cases/:id/audit.
func (h *CasesHandler) AuditTrail(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	entries, err := h.audit.Trail(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.NewAuditEntryResponse(e))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SLADashboard GET /dashboard/sla.
func (h *CasesHandler) SLADashboard(c *fiber.Ctx) error {
	board, err := h.cases.SLADashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLADashboardResponse(board)})
}

// respondWithCase re-reads the case so the response carries a fresh SLA label.
func (h *CasesHandler) respondWithCase(c *fiber.Ctx, user *domain.User, caseID string, status int) error {
	view, err := h.cases.Get(c.UserContext(), user, caseID)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewCaseViewResponse(*view)})
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return user, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return validation.Validate(out)
}

func parseCaseFilter(c *fiber.Ctx) service.CaseListFilter {
	filter := service.CaseListFilter{}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	for _, part := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.CaseStatus(part))
	}
	for _, part := range splitQuery(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.CasePriority(part))
	}
	for _, part := range splitQuery(c.Query("category")) {
		filter.Categories = append(filter.Categories, domain.CaseCategory(part))
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func splitQuery(val string) []string {
	if val == "" {
		return nil
	}
	parts := []string{}
	for _, part := range strings.Split(val, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
