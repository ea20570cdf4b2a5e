package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/mwhite/petdose/internal/services"
)

// feedDays is how far ahead the calendar feed materializes doses.
const feedDays = 7

type ICalHandler struct {
	doseService *services.DoseService
	feedToken   string
}

func NewICalHandler(doseService *services.DoseService, feedToken string) *ICalHandler {
	return &ICalHandler{doseService: doseService, feedToken: feedToken}
}

// Feed publishes the coming week's doses as an iCal calendar, guarded by a
// static token so calendar apps can poll without a session.
func (handler *ICalHandler) Feed(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if handler.feedToken == "" || token != handler.feedToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	calendar := ics.NewCalendar()
	calendar.SetMethod(ics.MethodPublish)
	calendar.SetProductId("-//petdose//petdose//EN")
	calendar.SetXWRCalName("Pet Doses")

	for offset := 0; offset < feedDays; offset++ {
		date := now.AddDate(0, 0, offset)
		views, err := handler.doseService.ListForDate(r.Context(), date, now)
		if err != nil {
			slog.Error("building ical feed", "date", date.Format("2006-01-02"), "error", err)
			http.Error(w, "Error", http.StatusInternalServerError)
			return
		}

		for _, view := range views {
			event := calendar.AddEvent(fmt.Sprintf("%s@petdose", view.Instance.ID))
			event.SetDtStampTime(now)
			event.SetStartAt(view.Instance.ScheduledAt)
			event.SetEndAt(view.Instance.ScheduledAt.Add(15 * time.Minute))
			event.SetSummary(fmt.Sprintf("Give %s", view.Item.Name))
			if view.Item.Frequency != "" {
				event.SetDescription(view.Item.Frequency)
			}
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=petdose.ics")
	w.Write([]byte(calendar.Serialize()))
}
