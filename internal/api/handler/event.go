package handler

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-simple-meetup/internal/api"
	"github.com/sanosuguru/go-simple-meetup/internal/domain/event"
	"github.com/sanosuguru/go-simple-meetup/internal/pkg/clock"
)

type EventHandler struct {
	eventService EventServiceInterface
	clock        clock.Clock
}

func NewEventHandler(eventService EventServiceInterface, clk clock.Clock) *EventHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &EventHandler{eventService: eventService, clock: clk}
}

// RegisterRoutes はイベントAPIのルートを登録する
// g は /api/events にマウントされたグループ
func (h *EventHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListOpen)
	g.POST("", h.Create)
	g.GET("/:heldOn/:name", h.Get)
	g.GET("/:heldOn/:name/registrations", h.ListRegistrations)
	g.POST("/:heldOn/:name/registrations", h.Register)
	g.POST("/:heldOn/:name/close", h.Close)
}

type CreateEventRequest struct {
	HeldOn        string `json:"heldOn" validate:"required,datetime=2006-01-02" example:"2018-10-31"`
	Name          string `json:"name" validate:"required,max=512" example:"Halloween"`
	NumberOfSeats *int   `json:"numberOfSeats,omitempty" validate:"omitempty,min=0" example:"20"`
}

type RegisterRequest struct {
	Email string `json:"email" validate:"required,email" example:"john.doe@example.com"`
	Name  string `json:"name" validate:"required" example:"John Doe"`
}

// Link は HAL のリンク
type Link struct {
	Href string `json:"href"`
}

type EventResponse struct {
	HeldOn            string          `json:"heldOn" example:"2018-10-31"`
	Name              string          `json:"name" example:"Halloween"`
	NumberOfFreeSeats int             `json:"numberOfFreeSeats" example:"19"`
	Links             map[string]Link `json:"_links"`
}

type EventListResponse struct {
	Embedded struct {
		Events []*EventResponse `json:"events"`
	} `json:"_embedded"`
	Links map[string]Link `json:"_links"`
}

type RegistrationResponse struct {
	Email string          `json:"email" example:"joh*****@example.com"`
	Name  string          `json:"name" example:"John Doe"`
	Links map[string]Link `json:"_links,omitempty"`
}

type RegistrationListResponse struct {
	Embedded struct {
		Registrations []*RegistrationResponse `json:"registrations"`
	} `json:"_embedded"`
	Links map[string]Link `json:"_links"`
}

func toEventResponse(e *event.Event) *EventResponse {
	key := e.Key()
	return &EventResponse{
		HeldOn:            e.HeldOn().Format(time.DateOnly),
		Name:              e.Name(),
		NumberOfFreeSeats: e.NumberOfFreeSeats(),
		Links: map[string]Link{
			"self":          {Href: api.EventPath(key)},
			"registrations": {Href: api.RegistrationsPath(key)},
		},
	}
}

// toRegistrationResponse はメールアドレスをマスクしたレスポンスを作る
func toRegistrationResponse(r event.Registration) *RegistrationResponse {
	return &RegistrationResponse{
		Email: r.MaskedEmail(),
		Name:  r.Name(),
	}
}

// ListOpen godoc
// @Summary 受付中のイベント一覧を取得
// @Description 今後開催される受付中のイベントを開催日順に取得します
// @Tags events
// @Produce json
// @Success 200 {object} EventListResponse
// @Router /events [get]
func (h *EventHandler) ListOpen(c echo.Context) error {
	events, err := h.eventService.GetOpenEvents(c.Request().Context())
	if err != nil {
		return err
	}

	var resp EventListResponse
	resp.Embedded.Events = make([]*EventResponse, len(events))
	for i, e := range events {
		resp.Embedded.Events[i] = toEventResponse(e)
	}
	resp.Links = map[string]Link{"self": {Href: api.EventsPath}}
	return c.JSON(http.StatusOK, resp)
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントを作成します（座席数の省略時は20）
// @Tags events
// @Accept json
// @Produce json
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	heldOn, err := time.Parse(time.DateOnly, req.HeldOn)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開催日の形式が不正です")
	}
	seats := event.DefaultNumberOfSeats
	if req.NumberOfSeats != nil {
		seats = *req.NumberOfSeats
	}

	candidate, err := event.NewEvent(h.clock, heldOn, req.Name, seats)
	if err != nil {
		return err
	}
	created, err := h.eventService.CreateNewEvent(c.Request().Context(), candidate)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, api.EventPath(created.Key()))
	return c.JSON(http.StatusCreated, toEventResponse(created))
}

// Get godoc
// @Summary イベントを取得
// @Description 開催日と名前でイベントを取得します
// @Tags events
// @Produce json
// @Param heldOn path string true "開催日（YYYY-MM-DD）"
// @Param name path string true "イベント名"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{heldOn}/{name} [get]
func (h *EventHandler) Get(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	e, err := h.eventService.GetEvent(c.Request().Context(), key.HeldOn, key.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// ListRegistrations godoc
// @Summary イベントの登録一覧を取得
// @Description 登録者のメールアドレスはマスクされます
// @Tags registrations
// @Produce json
// @Param heldOn path string true "開催日（YYYY-MM-DD）"
// @Param name path string true "イベント名"
// @Success 200 {object} RegistrationListResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{heldOn}/{name}/registrations [get]
func (h *EventHandler) ListRegistrations(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	e, err := h.eventService.GetEvent(c.Request().Context(), key.HeldOn, key.Name)
	if err != nil {
		return err
	}

	regs := e.Registrations()
	var resp RegistrationListResponse
	resp.Embedded.Registrations = make([]*RegistrationResponse, len(regs))
	for i, r := range regs {
		resp.Embedded.Registrations[i] = toRegistrationResponse(r)
	}
	resp.Links = map[string]Link{
		"self":  {Href: api.RegistrationsPath(e.Key())},
		"event": {Href: api.EventPath(e.Key())},
	}
	return c.JSON(http.StatusOK, resp)
}

// Register godoc
// @Summary イベントに登録
// @Description 人をイベントに登録します
// @Tags registrations
// @Accept json
// @Produce json
// @Param heldOn path string true "開催日（YYYY-MM-DD）"
// @Param name path string true "イベント名"
// @Param request body RegisterRequest true "登録者情報"
// @Success 201 {object} RegistrationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /events/{heldOn}/{name}/registrations [post]
func (h *EventHandler) Register(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	p, err := event.NewPerson(req.Email, req.Name)
	if err != nil {
		return err
	}
	reg, err := h.eventService.RegisterFor(c.Request().Context(), key, p)
	if err != nil {
		return err
	}

	resp := toRegistrationResponse(reg)
	resp.Links = map[string]Link{
		"event":         {Href: api.EventPath(key)},
		"registrations": {Href: api.RegistrationsPath(key)},
	}
	c.Response().Header().Set(echo.HeaderLocation, api.RegistrationsPath(key))
	return c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary イベントを締め切る
// @Description イベントの受付を締め切ります（元に戻せません）
// @Tags events
// @Produce json
// @Param heldOn path string true "開催日（YYYY-MM-DD）"
// @Param name path string true "イベント名"
// @Success 200 {object} EventResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /events/{heldOn}/{name}/close [post]
func (h *EventHandler) Close(c echo.Context) error {
	key, err := keyParam(c)
	if err != nil {
		return err
	}
	e, err := h.eventService.CloseEvent(c.Request().Context(), key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// keyParam はパスパラメータからイベントの自然キーを取り出す
func keyParam(c echo.Context) (event.Key, error) {
	heldOn, err := time.Parse(time.DateOnly, c.Param("heldOn"))
	if err != nil {
		return event.Key{}, echo.NewHTTPError(http.StatusBadRequest, "開催日の形式が不正です")
	}

	name := c.Param("name")
	// エスケープされたパス（%2F など）の場合は echo がデコードしない
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	if name == "" {
		return event.Key{}, echo.NewHTTPError(http.StatusBadRequest, "イベント名が必要です")
	}
	return event.NewKey(heldOn, name), nil
}
