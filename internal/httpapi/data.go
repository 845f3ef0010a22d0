package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bartek5186/mosync/internal/apperr"
	"github.com/bartek5186/mosync/internal/store"
	"github.com/labstack/echo/v4"
)

// Data export endpoints: filtered, paginated table reads.

func (s *Server) listRecentMO(c echo.Context) error {
	f := store.RecentMOFilter{
		MoName: c.QueryParam("mo_name"),
		State:  c.QueryParam("state"),
	}
	switch c.QueryParam("ready") {
	case "true":
		v := true
		f.Ready = &v
	case "false":
		v := false
		f.Ready = &v
	}
	rows, pg, err := s.store.ListRecentMO(c.Request().Context(), f, page(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: rows, Pagination: pg})
}

func (s *Server) listIdentity(c echo.Context) error {
	f := store.IdentityFilter{
		MoName:         c.QueryParam("mo_name"),
		Sku:            c.QueryParam("sku"),
		CreatedAtFrom:  c.QueryParam("created_at_from"),
		CreatedAtTo:    c.QueryParam("created_at_to"),
		FinishedAtFrom: c.QueryParam("finished_at_from"),
		FinishedAtTo:   c.QueryParam("finished_at_to"),
	}
	rows, pg, err := s.store.ListIdentity(c.Request().Context(), f, page(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: rows, Pagination: pg})
}

func (s *Server) listProductionLog(c echo.Context) error {
	f := store.ProductionLogFilter{
		MoName:   c.QueryParam("mo_name"),
		Status:   c.QueryParam("status"),
		FromDate: c.QueryParam("from_date"),
		ToDate:   c.QueryParam("to_date"),
	}
	rows, pg, err := s.store.ListProductionLog(c.Request().Context(), f, page(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: rows, Pagination: pg})
}

func (s *Server) listVendors(c echo.Context) error {
	f := store.VendorFilter{
		Roll:         c.QueryParam("roll"),
		Authenticity: c.QueryParam("authenticity"),
	}
	rows, pg, err := s.store.ListVendors(c.Request().Context(), f, page(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: rows, Pagination: pg})
}

func (s *Server) listUsedRM(c echo.Context) error {
	f := store.UsedRMFilter{Authenticity: c.QueryParam("authenticity")}
	if v := strings.TrimSpace(c.QueryParam("transfer_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return apperr.Invalid("transfer_id must be an integer")
		}
		f.TransferID = &id
	}
	rows, pg, src, err := s.store.ListUsedRM(c.Request().Context(), f, page(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{OK: true, Data: rows, Pagination: pg, Source: src})
}
