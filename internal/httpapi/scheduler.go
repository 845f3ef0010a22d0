package httpapi

import (
	"net/http"
	"strconv"

	"github.com/bartek5186/mosync/internal/syncer"
	"github.com/labstack/echo/v4"
)

type schedulerStartRequest struct {
	IntervalMinutes FlexString `json:"interval_minutes"`
	SessionID       FlexString `json:"session_id"`
}

// minutes: anything but a positive integer keeps the configured interval.
func (r schedulerStartRequest) minutes() int {
	n, err := strconv.Atoi(r.IntervalMinutes.String())
	if err != nil || n <= 0 || n > maxIntervalMinutes {
		return 0
	}
	return n
}

const maxIntervalMinutes = 7 * 24 * 60

func (s *Server) schedulerStatus(job string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := s.sched.Status(job)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, st)
	}
}

func (s *Server) schedulerStart(job string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req schedulerStartRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}
		started, err := s.sched.Start(job, syncer.StartOptions{
			IntervalMinutes: req.minutes(),
			SessionID:       req.SessionID.String(),
		})
		if err != nil {
			return err
		}
		if !started {
			return c.JSON(http.StatusOK, map[string]any{"ok": true, "message": "Scheduler already running"})
		}
		st, err := s.sched.Status(job)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{
			"ok":               true,
			"running":          true,
			"interval_minutes": st.IntervalMinutes,
		})
	}
}

func (s *Server) schedulerStop(job string) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := s.sched.Status(job)
		if err != nil {
			return err
		}
		if !st.Running {
			return c.JSON(http.StatusOK, map[string]any{"ok": true, "message": "Scheduler already stopped"})
		}
		if err := s.sched.Stop(job); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "running": false})
	}
}

func (s *Server) schedulerStatusAll(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.StatusAll())
}
