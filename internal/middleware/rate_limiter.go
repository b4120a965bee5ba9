package middleware

import (
	"strconv"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/utilities"
)

func keyFunc(c *gin.Context) string {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		return "ip: " + c.ClientIP()
	}
	return "user: " + strconv.FormatUint(uint64(caller.UserID), 10)
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.Header("Retry-After", strconv.Itoa(int(time.Until(info.ResetTime).Seconds())+1))
	c.AbortWithStatusJSON(429, utilities.ErrorResponse{
		Error: "Too many requests. Please try again later.",
		Code:  string(apperror.CodeRateLimited),
	})
}

// RateLimiterMiddleware limits each caller, or client IP before
// authentication, to reqPerSec requests per second. With a redis client
// the counters are shared by every API instance.
func RateLimiterMiddleware(reqPerSec uint, rdb redis.UniversalClient) gin.HandlerFunc {
	if reqPerSec == 0 {
		reqPerSec = 5
	}

	var store ratelimit.Store
	if rdb != nil {
		store = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: rdb,
			Rate:        time.Second,
			Limit:       reqPerSec,
		})
	} else {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  time.Second,
			Limit: reqPerSec,
		})
	}

	return ratelimit.RateLimiter(store, &ratelimit.Options{
		KeyFunc:      keyFunc,
		ErrorHandler: errorHandler,
	})
}
