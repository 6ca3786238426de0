package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub/internal/apperr"
	"studyhub/internal/catalog"
	"studyhub/internal/model"
)

type saveTimetableRequest struct {
	Schedule  []model.TimetableEntry `json:"schedule"`
	UpdatedAt *time.Time             `json:"updatedAt"`
}

// handleGetTimetable always answers with the caller's own timetable, empty
// when nothing was saved yet.
func (s *Server) handleGetTimetable(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	tt, err := s.repos.Timetables.Get(r.Context(), identity.ID)
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "timetable": tt})
}

func (s *Server) handleSaveTimetable(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req saveTimetableRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	schedule, err := validateSchedule(req.Schedule)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var expected time.Time
	if req.UpdatedAt != nil {
		expected = *req.UpdatedAt
	}
	tt, err := s.repos.Timetables.Save(r.Context(), identity.ID, schedule, expected)
	if err != nil {
		s.fail(w, r, storeError(err, apperr.Denied()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "timetable": tt})
}

func validateSchedule(entries []model.TimetableEntry) ([]model.TimetableEntry, error) {
	var c checks
	if len(entries) > maxEntries {
		c.add("schedule", "at most %d entries are allowed", maxEntries)
		return nil, c.err()
	}
	out := make([]model.TimetableEntry, 0, len(entries))
	for i, entry := range entries {
		field := fmt.Sprintf("schedule[%d]", i)
		entry.Day = c.day(field+".day", entry.Day)
		c.required(field+".subject", entry.Subject, maxNameLen)
		c.optional(field+".location", entry.Location, maxNameLen)
		entry.Subject = strings.TrimSpace(entry.Subject)
		entry.Location = strings.TrimSpace(entry.Location)

		start, startOK := parseClock(entry.StartTime)
		end, endOK := parseClock(entry.EndTime)
		switch {
		case !startOK:
			c.add(field+".startTime", "startTime must be HH:MM")
		case !endOK:
			c.add(field+".endTime", "endTime must be HH:MM")
		case !start.Before(end):
			c.add(field+".endTime", "endTime must be after startTime")
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		out = append(out, entry)
	}
	if err := c.err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) handleListCourses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "courses": catalog.Courses()})
}
