package handler // declare the package name; contains HTTP handlers

import (
    "net/http"          // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It reports
// liveness only; it deliberately does not touch MySQL or the lock store.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status
}
