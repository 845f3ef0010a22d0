package httpapi

import (
	"net/http"

	"github.com/bartek5186/mosync/internal/production"
	"github.com/labstack/echo/v4"
)

func (s *Server) moOptions(c echo.Context) error {
	rows, err := s.prod.MOOptions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataBody{Data: rows})
}

func (s *Server) readyMO(c echo.Context) error {
	rows, err := s.prod.ReadyMOs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataBody{Data: rows})
}

func (s *Server) runningMO(c echo.Context) error {
	rows, err := s.prod.RunningMOs(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataBody{Data: rows})
}

func (s *Server) readyMODetails(c echo.Context) error {
	d, err := s.prod.ReadyMODetails(c.Request().Context(), c.QueryParam("mo_name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dataBody{Data: d})
}

type registerRequest struct {
	MoName           FlexString `json:"mo_name" validate:"required"`
	AuthFirst        FlexString `json:"auth_first"`
	RollNumber       FlexString `json:"roll_number"`
	RunMidProduction bool       `json:"run_mid_production"`
}

func (s *Server) registerMO(c echo.Context) error {
	var req registerRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	err := s.prod.Register(c.Request().Context(), production.RegisterInput{
		MOName:        req.MoName.String(),
		AuthFirst:     req.AuthFirst.String(),
		RollNumber:    req.RollNumber.String(),
		MidProduction: req.RunMidProduction,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

type startRequest struct {
	MoName   FlexString `json:"mo_name" validate:"required"`
	LeaderID FlexString `json:"leader_id" validate:"required"`
}

func (s *Server) startProduction(c echo.Context) error {
	var req startRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	res, err := s.prod.Start(c.Request().Context(), production.StartInput{
		MOName:   req.MoName.String(),
		LeaderID: string(req.LeaderID),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "date_start": res.DateStart})
}

type changeoverRequest struct {
	CurrentMO  FlexString `json:"current_mo" validate:"required"`
	NextMO     FlexString `json:"next_mo" validate:"required"`
	NewAuth    FlexString `json:"new_auth" validate:"required"`
	RollNumber FlexString `json:"roll_number"`
}

func (s *Server) changeover(c echo.Context) error {
	var req changeoverRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	res, err := s.prod.Changeover(c.Request().Context(), production.ChangeoverInput{
		CurrentMO:  req.CurrentMO.String(),
		NextMO:     req.NextMO.String(),
		NewAuth:    req.NewAuth.String(),
		RollNumber: req.RollNumber.String(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":               true,
		"current_end_auth": res.CurrentEndAuth,
		"next_start_auth":  res.NextStartAuth,
	})
}

type endRequest struct {
	MoName       FlexString `json:"mo_name" validate:"required"`
	Authenticity FlexString `json:"authenticity" validate:"required"`
	RollNumber   FlexString `json:"roll_number"`
}

func (s *Server) endProduction(c echo.Context) error {
	var req endRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	res, err := s.prod.End(c.Request().Context(), production.EndInput{
		MOName:       req.MoName.String(),
		Authenticity: req.Authenticity.String(),
		RollNumber:   req.RollNumber.String(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":            true,
		"end_auth":      res.EndAuth,
		"date_finished": res.DateFinished,
	})
}
