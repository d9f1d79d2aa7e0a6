package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers reply with transport status 200 on every path. The envelope
// status field carries the real outcome.

// DataResponse wraps data in the standard envelope. statusCode becomes the
// envelope status and message.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	env := APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	}
	return c.JSON(http.StatusOK, env)
}

// SuccessResponse reports a completed operation.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse reports a rejected request. data usually holds
// validation errors.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// InternalServerErrorResponse reports a failure without naming its cause.
func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse picks the envelope for an error. A *AppError anywhere in
// the chain keeps its status and code; any other error becomes a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
