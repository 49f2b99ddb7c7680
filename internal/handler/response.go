package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// requestTimeout bounds every store and cache round trip a handler makes.
const requestTimeout = 5 * time.Second

// Meta is the pagination block of list responses.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type successBody struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorBody struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

func respond(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, successBody{Success: true, Data: data, Message: message})
}

// ok writes 200 with data.
func ok(c echo.Context, data any, message string) error {
	return respond(c, http.StatusOK, data, message)
}

func created(c echo.Context, data any, message string) error {
	return respond(c, http.StatusCreated, data, message)
}

// messageOnly writes 200 with no data, as for actions that return nothing.
func messageOnly(c echo.Context, message string) error {
	return respond(c, http.StatusOK, nil, message)
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
