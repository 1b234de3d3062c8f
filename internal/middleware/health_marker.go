package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys shared by HealthMarker and the health endpoints.
const (
	KeyReqTotal  = "health:global:req_total"
	KeyReqErrors = "health:global:req_errors"
	KeyResTime   = "health:global:res_time_total"
	KeyResCount  = "health:global:res_count"
	KeyStartTime = "health:global:start_time"
	KeyLastReq   = "health:global:last_request"
	KeyErrorLog  = "health:global:error_log"
)

const errorLogSize = 100

func skipHealthMarker(path string) bool {
	return path == "/" || path == "/reset" || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon")
}

// HealthMarker records request stats in Redis (skip /, /reset, /health*, favicon).
// A nil client disables it.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || skipHealthMarker(c.Path()) {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := context.Background()
		_, _ = rdb.Set(ctx, KeyLastReq, b, 0).Result()
		_, _ = rdb.Incr(ctx, KeyReqTotal).Result()

		err := c.Next()

		ms := time.Since(start).Milliseconds()
		_, _ = rdb.Incr(ctx, KeyResCount).Result()
		_, _ = rdb.IncrByFloat(ctx, KeyResTime, float64(ms)).Result()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		if status >= fiber.StatusInternalServerError {
			_, _ = rdb.Incr(ctx, KeyReqErrors).Result()
			entry := map[string]interface{}{
				"time":     time.Now(),
				"path":     c.OriginalURL(),
				"method":   c.Method(),
				"status":   status,
				"trace_id": GetTraceID(c),
			}
			if err != nil {
				entry["message"] = err.Error()
			}
			if e, mErr := json.Marshal(entry); mErr == nil {
				pipe := rdb.TxPipeline()
				pipe.LPush(ctx, KeyErrorLog, e)
				pipe.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1)
				_, _ = pipe.Exec(ctx)
			}
		}
		return err
	}
}
