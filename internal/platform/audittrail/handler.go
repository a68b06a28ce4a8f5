package audittrail

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/notewriter/internal/platform/auth"
)

type Handler struct {
	trail *Trail
}

func NewHandler(trail *Trail) *Handler {
	return &Handler{trail: trail}
}

// RegisterRoutes mounts the audit endpoints on g. They are admin only.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	ag := g.Group("/audit", auth.RequireRole(auth.RoleAdmin))
	ag.GET("", h.Search)
	ag.GET("/summary", h.Summary)
	ag.GET("/export.csv", h.ExportCSV)
	ag.GET("/:id", h.GetEntry)
}

func parseParams(c echo.Context) (SearchParams, error) {
	p := SearchParams{
		UserID:    c.QueryParam("user_id"),
		SessionID: c.QueryParam("session_id"),
		Action:    c.QueryParam("action"),
		Outcome:   c.QueryParam("outcome"),
		SortBy:    c.QueryParam("sort_by"),
		SortOrder: c.QueryParam("sort_order"),
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		p.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		p.Offset = n
	}
	for name, dst := range map[string]**time.Time{"start_time": &p.StartTime, "end_time": &p.EndTime} {
		v := c.QueryParam(name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
		}
		*dst = &ts
	}
	return p, nil
}

func (h *Handler) Search(c echo.Context) error {
	p, err := parseParams(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.trail.Search(p))
}

func (h *Handler) Summary(c echo.Context) error {
	p, err := parseParams(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.trail.Summary(p))
}

func (h *Handler) ExportCSV(c echo.Context) error {
	p, err := parseParams(c)
	if err != nil {
		return err
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv")
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=\"session_audit_%s.csv\"", time.Now().UTC().Format("20060102_150405")))
	res.WriteHeader(http.StatusOK)
	return h.trail.ExportCSV(p, res)
}

func (h *Handler) GetEntry(c echo.Context) error {
	e := h.trail.Get(c.Param("id"))
	if e == nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit entry not found")
	}
	return c.JSON(http.StatusOK, e)
}
