package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	infraprom "github.com/sifan077/utmlink/internal/infra/prometheus"
)

// Metrics records request counts, latency and in-flight requests per route.
func Metrics(m *infraprom.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.RequestStarted()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		m.RequestFinished(c.Route().Path, c.Method(), status, time.Since(start))
		return err
	}
}
