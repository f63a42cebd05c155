package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the aggregated health. DOWN answers 503; DEGRADED still answers 200.
func Handler(service *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := service.GetHealthResponse(c.Request().Context())

		statusCode := http.StatusOK
		if response.Status == StatusDown {
			statusCode = http.StatusServiceUnavailable
		}
		return c.JSON(statusCode, response)
	}
}
