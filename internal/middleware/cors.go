package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

// CORSConfig configures CORS middleware
type CORSConfig struct {
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	AllowedMethods   []string      `yaml:"allowed_methods"`
	AllowedHeaders   []string      `yaml:"allowed_headers"`
	AllowCredentials bool          `yaml:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age"`
}

// Enabled reports whether any origin is allowed.
func (c CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// DefaultCORSConfig returns a permissive CORS config (for development)
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
}

// CORS adds Access-Control-* headers for allowed origins. It is meant for the
// post chain so handlers cannot drop the headers.
func CORS(config CORSConfig) Middleware {
	methods := strings.Join(config.AllowedMethods, ", ")
	allowHeaders := strings.Join(config.AllowedHeaders, ", ")

	return func(req *request.Request, res *response.Response) *response.Response {
		origin := req.Header("Origin")
		if origin == "" || !isAllowedOrigin(origin, config.AllowedOrigins) {
			return res
		}

		res.SetHeader("Access-Control-Allow-Origin", origin)
		if methods != "" {
			res.SetHeader("Access-Control-Allow-Methods", methods)
		}
		if allowHeaders != "" {
			res.SetHeader("Access-Control-Allow-Headers", allowHeaders)
		}
		if config.AllowCredentials {
			res.SetHeader("Access-Control-Allow-Credentials", "true")
		}
		if config.MaxAge > 0 {
			res.SetHeader("Access-Control-Max-Age", strconv.Itoa(int(config.MaxAge.Seconds())))
		}
		return res
	}
}

func isAllowedOrigin(origin string, allowed []string) bool {
	for _, allowedOrigin := range allowed {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}
