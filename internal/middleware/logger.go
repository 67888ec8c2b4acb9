package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one structured line per request.  Responses with a
// status of 400 or more are logged at error level.
func RequestLogger() echo.MiddlewareFunc {
	log := logrus.WithField("component", "http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			entry := log.WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"route":      c.Path(),
				"status":     c.Response().Status,
				"duration":   time.Since(start).String(),
				"client_ip":  c.RealIP(),
				"user_agent": req.UserAgent(),
			})
			if uid := UserID(c); uid != "" {
				entry = entry.WithField("user_id", uid)
			}
			if c.Response().Status >= 400 {
				if err != nil {
					entry = entry.WithError(err)
				}
				entry.Error("request failed")
			} else {
				entry.Info("request completed")
			}
			return nil
		}
	}
}
