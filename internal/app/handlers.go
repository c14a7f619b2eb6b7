package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"meetsched-service/internal/model"
)

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// parseRange reads from/to query params as RFC 3339 instants.
func parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from, want RFC3339"})
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to, want RFC3339"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// POST /api/users/:id/availability
// Replaces the host's full rule set atomically.
func (a *App) ReplaceAvailabilityHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload []model.AvailabilityRule
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i := range payload {
		payload[i].UserID = hostID
		if err := payload[i].Validate(); err != nil {
			a.fail(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	if _, err := a.Store.GetHost(ctx, hostID); err != nil {
		a.fail(c, err)
		return
	}
	saved, err := a.Store.ReplaceRules(ctx, hostID, payload)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// GET /api/users/:id/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rules, err := a.Store.ListRules(c.Request.Context(), hostID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// POST /api/users/:id/meeting-types
func (a *App) CreateMeetingTypeHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var mt model.MeetingType
	if err := c.BindJSON(&mt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mt.UserID = hostID
	mt.Active = true
	if err := mt.Validate(); err != nil {
		a.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := a.Store.GetHost(ctx, hostID); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Store.CreateMeetingType(ctx, &mt); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, mt)
}

// GET /api/users/:id/meeting-types
func (a *App) ListMeetingTypesHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	types, err := a.Store.ListMeetingTypes(c.Request.Context(), hostID)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

// PUT /api/users/:id/meeting-types/:mt_id
func (a *App) UpdateMeetingTypeHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	mtID, ok := pathID(c, "mt_id")
	if !ok {
		return
	}
	var mt model.MeetingType
	if err := c.BindJSON(&mt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mt.ID = mtID
	mt.UserID = hostID
	if err := mt.Validate(); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Store.UpdateMeetingType(c.Request.Context(), &mt); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mt)
}

// DELETE /api/users/:id/meeting-types/:mt_id
func (a *App) DeleteMeetingTypeHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	mtID, ok := pathID(c, "mt_id")
	if !ok {
		return
	}
	if err := a.Store.DeleteMeetingType(c.Request.Context(), hostID, mtID); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/users/:id/meeting-types/:mt_id/slots?from=ISO&to=ISO
func (a *App) GetSlotsHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	mtID, ok := pathID(c, "mt_id")
	if !ok {
		return
	}
	from, to, ok := parseRange(c)
	if !ok {
		return
	}

	slots, err := a.Engine.GenerateSlots(c.Request.Context(), hostID, mtID, from, to)
	if err != nil {
		a.fail(c, err)
		return
	}
	if slots == nil {
		slots = []model.CandidateSlot{}
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots, "count": len(slots)})
}

type createBookingReq struct {
	Invitee       model.Invitee `json:"invitee" binding:"required"`
	ScheduledTime string        `json:"scheduled_time" binding:"required"` // RFC3339
}

// POST /api/users/:id/meeting-types/:mt_id/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	mtID, ok := pathID(c, "mt_id")
	if !ok {
		return
	}
	var req createBookingReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	scheduled, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_time, want RFC3339"})
		return
	}

	ctx := c.Request.Context()
	// The meeting type in the path must belong to the host in the path.
	mt, err := a.Store.GetMeetingType(ctx, mtID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if mt.UserID != hostID {
		a.fail(c, model.ErrMeetingTypeNotFound)
		return
	}

	booking, err := a.Booker.AdmitBooking(ctx, mtID, req.Invitee, scheduled)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /api/users/:id/bookings?from=ISO&to=ISO
func (a *App) ListBookingsHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var (
		from, to time.Time
		filtered = c.Query("from") != "" || c.Query("to") != ""
	)
	if filtered {
		var ok bool
		if from, to, ok = parseRange(c); !ok {
			return
		}
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
			return
		}
	}

	bookings, err := a.Store.ListBookings(c.Request.Context(), hostID, from, to, filtered)
	if err != nil {
		a.fail(c, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

type cancelBookingReq struct {
	Reason string `json:"reason"`
}

// DELETE /api/users/:id/bookings/:booking_id
func (a *App) CancelBookingHandler(c *gin.Context) {
	hostID, ok := pathID(c, "id")
	if !ok {
		return
	}
	bookingID := c.Param("booking_id")

	var req cancelBookingReq
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	booking, err := a.Booker.CancelBooking(c.Request.Context(), hostID, bookingID, req.Reason)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GET /public/:username
// Unauthenticated booking-page payload: the host plus their active meeting
// types. Tokens never leave this handler.
func (a *App) PublicProfileHandler(c *gin.Context) {
	username := c.Param("username")
	ctx := c.Request.Context()

	host, err := a.Store.GetHostByUsername(ctx, username)
	if err != nil {
		a.fail(c, err)
		return
	}
	types, err := a.Store.ListMeetingTypes(ctx, host.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	active := make([]model.MeetingType, 0, len(types))
	for _, mt := range types {
		if mt.Active {
			active = append(active, mt)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"host": gin.H{
			"id":       host.ID,
			"username": host.Username,
			"timezone": host.Timezone,
		},
		"meeting_types": active,
	})
}
