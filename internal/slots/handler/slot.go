package handler

import (
	"net/http"

	"slotify/internal/slots/service"
	"slotify/pkg/auth"
	httputil "slotify/pkg/http"
	"slotify/pkg/logger"
	"slotify/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type SlotHandler struct {
	slots    service.SlotService
	bookings service.BookingService
	auth     *auth.Authenticator
	log      *logger.Logger
}

func NewSlotHandler(slots service.SlotService, bookings service.BookingService, authenticator *auth.Authenticator, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		slots:    slots,
		bookings: bookings,
		auth:     authenticator,
		log:      log,
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/slots", h.auth.Admin(h.CreateSlots))
	router.GET("/api/slots", h.auth.User(h.ListAvailable))
	router.GET("/api/slots/booked", h.auth.Admin(h.ListBooked))
	router.DELETE("/api/slots/:id", h.auth.Admin(h.DeleteSlot))

	router.POST("/api/bookings/:slotId", h.auth.User(h.Reserve))
	router.DELETE("/api/bookings/:slotId", h.auth.User(h.Cancel))
	router.GET("/api/my-bookings", h.auth.User(h.MyBookings))
}

func (h *SlotHandler) CreateSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input model.SlotCreationInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "CreateSlots", err)
		return
	}

	result, err := h.slots.CreateSlots(r.Context(), &input)
	if err != nil {
		h.writeError(w, "CreateSlots", err)
		return
	}

	if err := httputil.WriteCreated(w, "Slots created successfully", result); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateSlots", "operation", "WriteCreated", "error", err)
	}
}

func (h *SlotHandler) ListAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	slots, err := h.slots.ListAvailable(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "ListAvailable", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) ListBooked(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	booked, err := h.slots.ListBooked(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, "ListBooked", err)
		return
	}

	if err := httputil.WriteSuccess(w, booked); err != nil {
		h.log.Error("failed to write success response", "handler", "ListBooked", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) DeleteSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.slots.DeleteSlot(r.Context(), id); err != nil {
		h.writeError(w, "DeleteSlot", err)
		return
	}

	if err := httputil.WriteMessage(w, http.StatusOK, "Slot deleted successfully", map[string]string{"id": id}); err != nil {
		h.log.Error("failed to write message response", "handler", "DeleteSlot", "operation", "WriteMessage", "error", err)
	}
}

func (h *SlotHandler) Reserve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.bookings.Reserve(r.Context(), ps.ByName("slotId"), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Reserve", err)
		return
	}

	if err := httputil.WriteMessage(w, http.StatusOK, "Slot booked successfully", slot); err != nil {
		h.log.Error("failed to write message response", "handler", "Reserve", "operation", "WriteMessage", "error", err)
	}
}

func (h *SlotHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	slot, err := h.bookings.Cancel(r.Context(), ps.ByName("slotId"), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteMessage(w, http.StatusOK, "Booking cancelled successfully", slot); err != nil {
		h.log.Error("failed to write message response", "handler", "Cancel", "operation", "WriteMessage", "error", err)
	}
}

func (h *SlotHandler) MyBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	slots, err := h.bookings.MyBookings(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "MyBookings", err)
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "MyBookings", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
