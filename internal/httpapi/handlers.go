package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"lyrics-panel/internal/panel"
	"lyrics-panel/pkg/romanize"
	"lyrics-panel/pkg/translate"
)

// Handler handles panel requests
type Handler struct {
	panel    Panel
	validate *validator.Validate
}

func NewHandler(p Panel) *Handler {
	return &Handler{panel: p, validate: validator.New()}
}

type modeRequest struct {
	Synced         *bool `json:"synced"`
	ShowSecondLine *bool `json:"show_second_line"`
}

type layoutRequest struct {
	ThumbnailPx   int  `json:"thumbnail_px" validate:"gte=0,lte=4096"`
	ShowThumbnail bool `json:"show_thumbnail"`
	Landscape     bool `json:"landscape"`
	HasTrailing   bool `json:"has_trailing"`
}

type editRequest struct {
	Text string `json:"text"`
}

type pickRequest struct {
	ID int `json:"id" validate:"gt=0"`
}

type translateRequest struct {
	Enabled bool   `json:"enabled"`
	Target  string `json:"target" validate:"omitempty,min=2"`
}

type romanizationRequest struct {
	Mode string `json:"mode" validate:"required,oneof=off original translated all"`
}

type locateRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return h.validate.Struct(out)
}

func (h *Handler) frame(c *fiber.Ctx) error {
	return c.JSON(h.panel.Render())
}

// GetPanel returns the current frame
func (h *Handler) GetPanel(c *fiber.Ctx) error {
	return h.frame(c)
}

// SetMode switches between plain and synced view
func (h *Handler) SetMode(c *fiber.Ctx) error {
	var req modeRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if req.ShowSecondLine != nil {
		h.panel.SetShowSecondLine(*req.ShowSecondLine)
	}
	if req.Synced != nil {
		if err := h.panel.SetSynced(c.Context(), *req.Synced); err != nil {
			return err
		}
	}
	return h.frame(c)
}

// SetLayout updates the geometry used to center the active line
func (h *Handler) SetLayout(c *fiber.Ctx) error {
	var req layoutRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	h.panel.SetLayout(panel.Layout{
		ThumbnailPx:   req.ThumbnailPx,
		ShowThumbnail: req.ShowThumbnail,
		Landscape:     req.Landscape,
		HasTrailing:   req.HasTrailing,
	})
	return h.frame(c)
}

// Refetch asks the providers again
func (h *Handler) Refetch(c *fiber.Ctx) error {
	if err := h.panel.Refetch(c.Context()); err != nil {
		return err
	}
	return h.frame(c)
}

// Edit saves manually edited lyrics for the current view
func (h *Handler) Edit(c *fiber.Ctx) error {
	var req editRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.panel.Edit(c.Context(), req.Text); err != nil {
		return err
	}
	return h.frame(c)
}

// Search lists candidate tracks, defaulting to the current song
func (h *Handler) Search(c *fiber.Ctx) error {
	tracks, err := h.panel.Search(c.Context(), c.Query("artist"), c.Query("title"))
	if err != nil {
		return err
	}
	items := make([]fiber.Map, len(tracks))
	for i, t := range tracks {
		items[i] = fiber.Map{"track": t, "label": t.Label(), "detail": t.Detail()}
	}
	return c.JSON(fiber.Map{"tracks": items})
}

// Pick stores the synced lyrics of a searched track
func (h *Handler) Pick(c *fiber.Ctx) error {
	var req pickRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.panel.Pick(c.Context(), req.ID); err != nil {
		return err
	}
	return h.frame(c)
}

// GetLanguages lists translation targets
func (h *Handler) GetLanguages(c *fiber.Ctx) error {
	return c.JSON(translate.Languages())
}

// SetTranslation toggles translation and its target language
func (h *Handler) SetTranslation(c *fiber.Ctx) error {
	var req translateRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	if err := h.panel.SetTranslation(c.Context(), req.Enabled, req.Target); err != nil {
		return err
	}
	return h.frame(c)
}

// SetRomanization changes the romanization mode
func (h *Handler) SetRomanization(c *fiber.Ctx) error {
	var req romanizationRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	mode, err := romanize.ParseMode(req.Mode)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.panel.SetRomanization(c.Context(), mode); err != nil {
		return err
	}
	return h.frame(c)
}

// Locate finds the playing song in a client-side list
func (h *Handler) Locate(c *fiber.Ctx) error {
	var req locateRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	idx := h.panel.Locate(req.IDs)
	return c.JSON(fiber.Map{"index": idx, "found": idx >= 0})
}
