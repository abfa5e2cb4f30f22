package handlers

import (
	"net/http"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/http/middleware"
	"staybackend/internal/services"

	"github.com/gin-gonic/gin"
)

// GET /api/properties/:id/bookings
func (a *API) ListPropertyBookings(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	f, err := bookingFilter(c)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	list, err := a.Bookings.ListForProperty(c.Request.Context(), middleware.Actor(c), id, f)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/properties/:id/availability?check_in=&check_out=
func (a *API) PropertyAvailability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	checkIn, err := queryDate(c, "check_in")
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	checkOut, err := queryDate(c, "check_out")
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	rng := models.DateRange{Start: checkIn, End: checkOut}
	if !rng.Valid() {
		a.RespondDomainError(c, domain.ValidationError{Field: "check_out", Msg: "check_out must be after check_in"})
		return
	}
	conflicts, err := a.Availability.FindConflicts(c.Request.Context(), id, rng, 0)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available": conflicts.Empty(),
		"conflicts": conflicts.Ranges(),
	})
}

// GET /api/blocked-dates?property_id=
func (a *API) ListBlockedDates(c *gin.Context) {
	pid, ok := queryID(c, "property_id")
	if !ok {
		return
	}
	list, err := a.BlockedDates.List(c.Request.Context(), middleware.Actor(c), pid)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	if list == nil {
		list = []models.BlockedDate{}
	}
	c.JSON(http.StatusOK, gin.H{"blockedDates": list})
}

// POST /api/blocked-dates
func (a *API) CreateBlockedDate(c *gin.Context) {
	var in services.CreateBlockedDateInput
	if !BindJSONOrError(c, &in) {
		return
	}
	bd, err := a.BlockedDates.Create(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blockedDate": bd})
}

// DELETE /api/blocked-dates/:id
func (a *API) DeleteBlockedDate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := a.BlockedDates.Delete(c.Request.Context(), middleware.Actor(c), id); err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Blocked dates removed"})
}

// GET /api/calendar/export?property_id=
func (a *API) ExportCalendar(c *gin.Context) {
	pid, ok := queryID(c, "property_id")
	if !ok {
		return
	}
	body, filename, err := a.Calendar.Export(c.Request.Context(), pid)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}
