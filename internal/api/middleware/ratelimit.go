// ratelimit.go — ограничение частоты операций записи по IP клиента.
// Token bucket (golang.org/x/time/rate) на каждый IP; лимитеры хранятся
// в LRU ограниченного размера, чтобы память не росла с числом клиентов.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apierrors "github.com/arturkryukov/media-server/internal/api/errors"
)

// limiterCacheSize — максимум одновременно отслеживаемых клиентов.
const limiterCacheSize = 4096

// RateLimiter — ограничитель частоты запросов по IP клиента.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	logger   *slog.Logger
}

// NewRateLimiter создаёт ограничитель: perMinute запросов в минуту на IP,
// с допуском кратковременных всплесков до половины лимита.
func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}

	return &RateLimiter{
		// Нулевой TTL: записи вытесняются только по размеру LRU,
		// фоновой горутины очистки нет
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, 0),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		logger:   logger.With(slog.String("component", "rate_limiter")),
	}
}

// limiterFor возвращает token bucket для IP, создавая его при первом обращении.
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if lim, ok := rl.limiters.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(ip, lim)
	return lim
}

// Middleware возвращает HTTP middleware ограничения частоты запросов.
// При превышении лимита — 429 с кодом RATE_LIMITED.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.limiterFor(ip).Allow() {
				rl.logger.Warn("Превышен лимит запросов",
					slog.String("client_ip", ip),
					slog.String("path", r.URL.Path),
				)
				apierrors.RateLimited(w, "Превышен лимит запросов, повторите позже")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP определяет IP клиента: первый адрес из X-Forwarded-For,
// иначе RemoteAddr без порта.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			xff = xff[:idx]
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
