package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func statusForKind(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindLinkExpired, KindLinkExhausted:
		return http.StatusGone
	case KindSlotConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := KindOf(err)
	c.JSON(statusForKind(kind), gin.H{"error": err.Error(), "code": string(kind)})
}

// RegisterRoutes wires the API surface. Availability and booking are public
// (invitee-facing); link creation and booking listing require the advisor's
// token.
func (a *App) RegisterRoutes(router *gin.Engine, jwtSecret string) {
	api := router.Group("/api")

	scheduling := api.Group("/scheduling")
	{
		scheduling.GET("/links/:id/availability", a.LinkAvailabilityHandler)
		scheduling.POST("/book", a.OptionalAuth(jwtSecret), a.BookSlotHandler)
		scheduling.POST("/links", a.AuthMiddleware(jwtSecret), a.CreateLinkHandler)
	}
	api.GET("/bookings", a.AuthMiddleware(jwtSecret), a.ListBookingsHandler)
}

type createLinkReq struct {
	MeetingLength    int        `json:"meetingLength" binding:"required"`
	MaxDaysInAdvance int        `json:"maxDaysInAdvance" binding:"required"`
	StartHour        int        `json:"startHour"`
	EndHour          int        `json:"endHour"`
	Questions        []string   `json:"questions"`
	MaxUses          int        `json:"maxUses"`
	ExpiresAt        *time.Time `json:"expiresAt"`
}

// POST /api/scheduling/links
func (a *App) CreateLinkHandler(c *gin.Context) {
	principal := PrincipalFrom(c)
	if principal == nil {
		writeError(c, E(KindUnauthorized, "authentication required"))
		return
	}

	var req createLinkReq
	if err := c.BindJSON(&req); err != nil {
		writeError(c, Wrap(KindInvalidInput, "invalid request body", err))
		return
	}
	// The public link form requires at least one question; raw registry
	// creation does not.
	if len(req.Questions) == 0 {
		writeError(c, E(KindInvalidInput, "at least one question is required"))
		return
	}

	link, err := a.CreateLink(c.Request.Context(), principal.UserID, CreateLinkInput{
		MeetingLength:    req.MeetingLength,
		MaxDaysInAdvance: req.MaxDaysInAdvance,
		StartHour:        req.StartHour,
		EndHour:          req.EndHour,
		Questions:        req.Questions,
		MaxUses:          req.MaxUses,
		ExpiresAt:        req.ExpiresAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"linkId":           link.ID,
		"questions":        link.Questions,
		"meetingLength":    link.MeetingLength,
		"maxDaysInAdvance": link.MaxDaysInAdvance,
		"startHour":        link.StartHour,
		"endHour":          link.EndHour,
		"maxUses":          link.MaxUses,
		"expiresAt":        link.ExpiresAt,
	})
}

// GET /api/scheduling/links/:id/availability?date=YYYY-MM-DD
func (a *App) LinkAvailabilityHandler(c *gin.Context) {
	slots, err := a.AvailableTimesForLink(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	if slots == nil {
		slots = []Slot{}
	}
	c.JSON(http.StatusOK, slots)
}

type bookSlotReq struct {
	SlotID           string            `json:"slotId" binding:"required"`
	Email            string            `json:"email" binding:"required"`
	Answers          []string          `json:"answers"`
	Metadata         map[string]string `json:"metadata"`
	SchedulingLinkID string            `json:"schedulingLinkId"`
	Date             string            `json:"date"`
}

// POST /api/scheduling/book
func (a *App) BookSlotHandler(c *gin.Context) {
	var req bookSlotReq
	if err := c.BindJSON(&req); err != nil {
		writeError(c, Wrap(KindInvalidInput, "invalid request body", err))
		return
	}

	result, err := a.BookSlot(c.Request.Context(), PrincipalFrom(c), BookSlotInput{
		SlotID:           req.SlotID,
		Email:            req.Email,
		Answers:          req.Answers,
		Metadata:         req.Metadata,
		SchedulingLinkID: req.SchedulingLinkID,
		Date:             req.Date,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type bookingView struct {
	Booking
	Questions []string `json:"questions,omitempty"`
}

// GET /api/bookings
func (a *App) ListBookingsHandler(c *gin.Context) {
	principal := PrincipalFrom(c)
	if principal == nil {
		writeError(c, E(KindUnauthorized, "authentication required"))
		return
	}

	ctx := c.Request.Context()
	bookings, err := a.Store.ListBookingsByUser(ctx, principal.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	// Answers align positionally with the link's questions at booking time;
	// surface both together for the advisor view.
	questionsByLink := map[string][]string{}
	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		view := bookingView{Booking: b}
		if b.SchedulingLinkID != "" {
			questions, ok := questionsByLink[b.SchedulingLinkID]
			if !ok {
				if link, err := a.Store.GetLink(ctx, b.SchedulingLinkID); err == nil {
					questions = link.Questions
				}
				questionsByLink[b.SchedulingLinkID] = questions
			}
			view.Questions = questions
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}
