package health

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Response is the body of both probes.
type Response struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

// CheckStatus represents the status of a single health check
type CheckStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

var startTime = time.Now()

// Liveness always answers 200 while the process can serve HTTP.
func Liveness(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{
			Status:    "alive",
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
		})
	}
}

// Readiness runs every checker in parallel and answers 503 if any fails.
func Readiness(serviceName, version string, checks map[string]Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type result struct {
			name     string
			err      error
			duration time.Duration
		}

		results := make(chan result, len(checks))
		var wg sync.WaitGroup
		for name, check := range checks {
			wg.Add(1)
			go func(name string, check Checker) {
				defer wg.Done()
				start := time.Now()
				err := AsyncChecker(check, DefaultTimeout)()
				results <- result{name: name, err: err, duration: time.Since(start)}
			}(name, check)
		}
		wg.Wait()
		close(results)

		status := "ready"
		code := http.StatusOK
		statuses := make(map[string]CheckStatus, len(checks))
		for r := range results {
			cs := CheckStatus{Status: "healthy", Duration: r.duration.String()}
			if r.err != nil {
				cs.Status = "unhealthy"
				cs.Message = r.err.Error()
				status = "not ready"
				code = http.StatusServiceUnavailable
			}
			statuses[r.name] = cs
		}

		c.JSON(code, Response{
			Status:    status,
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Checks:    statuses,
		})
	}
}
