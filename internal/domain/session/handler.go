package session

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/notewriter/internal/domain/catalog"
	"github.com/ehr/notewriter/internal/platform/auth"
	"github.com/ehr/notewriter/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleScribe))
	readGroup.GET("/sessions", h.ListSessions)
	readGroup.GET("/sessions/:id", h.GetSession)
	readGroup.GET("/sessions/:id/note", h.GetNote)
	readGroup.GET("/sessions/:id/sections/:mode/:title/text", h.GetSectionText)
	readGroup.GET("/templates/:mode", h.GetTemplate)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleClinician, auth.RoleScribe))
	writeGroup.POST("/sessions", h.CreateSession)
	writeGroup.DELETE("/sessions/:id", h.DeleteSession)
	writeGroup.POST("/sessions/:id/mutations", h.Mutate)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.DELETE("/sessions", h.DeleteAllSessions)
}

type createRequest struct {
	Label string `json:"label"`
}

type mutateRequest struct {
	Mutations []Mutation `json:"mutations"`
}

func sessionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.svc.Create(c.Request().Context(), req.Label)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	sess, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) ListSessions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Session{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path))
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return lookupError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteAllSessions(c echo.Context) error {
	n, err := h.svc.DeleteAll(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}

func (h *Handler) Mutate(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	var req mutateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Mutations) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "mutations is required")
	}
	res, err := h.svc.Mutate(c.Request().Context(), id, req.Mutations)
	if err != nil {
		if IsValidation(err) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetSectionText(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	mode, ok := catalog.ParseMode(c.Param("mode"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mode")
	}
	title, err := url.PathUnescape(c.Param("title"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid title")
	}
	text, err := h.svc.SectionText(c.Request().Context(), id, mode, title)
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, SectionText{Mode: string(mode), Title: title, Text: text})
}

func (h *Handler) GetNote(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	text, err := h.svc.Note(c.Request().Context(), id)
	if err != nil {
		return lookupError(err)
	}
	if c.QueryParam("format") == "text" {
		return c.String(http.StatusOK, text)
	}
	return c.JSON(http.StatusOK, map[string]string{"note": text})
}

func (h *Handler) GetTemplate(c echo.Context) error {
	mode, ok := catalog.ParseMode(c.Param("mode"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mode")
	}
	doc, err := h.svc.Template(c.Request().Context(), mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}
