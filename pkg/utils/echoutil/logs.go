package echoutil

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// LogHandlerFunc logs every request and its response.
//
// Requests to routes listed in quiet (probes, scrapes, heartbeats...)
// are logged in debug level, others in info level.
func LogHandlerFunc(quiet ...string) echo.MiddlewareFunc {
	q := map[string]struct{}{}
	for _, p := range quiet {
		q[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			logf := c.Logger().Infof
			if _, ok := q[c.Path()]; ok {
				logf = c.Logger().Debugf
			}

			meth := c.Request().Method
			url := c.Request().URL
			begin := time.Now()
			logf("< request %s %s", meth, url)

			err := next(c)
			logf(
				"> response %d for %s %s in %v / error = %v",
				statusOf(c, err), meth, url, time.Since(begin), err,
			)
			return err
		}
	}
}

// SetLevel sets level of e.Logger by its name.
//
// Unknown or empty names mean "warn".
func SetLevel(e *echo.Echo, loglevel string) {
	lv := map[string]log.Lvl{
		"debug": log.DEBUG,
		"info":  log.INFO,
		"warn":  log.WARN,
		"error": log.ERROR,
		"off":   log.OFF,
	}
	l, ok := lv[strings.ToLower(loglevel)]
	if !ok {
		e.Logger.SetLevel(log.WARN)
		if loglevel != "" {
			e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", loglevel)
		}
		return
	}
	e.Logger.SetLevel(l)
}
