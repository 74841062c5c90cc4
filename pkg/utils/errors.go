package utils

import (
	"context"
	"errors"
	"net"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrInvalidURL       = errors.New("Invalid URL")                    // Malformed or non-HTTP(S) URL supplied by a caller
	ErrProxyConfig      = errors.New("proxy configuration error")      // Tunneling agent could not be built
	ErrRequestCreation  = errors.New("failed to create HTTP request")  // Wraps http.NewRequest errors
	ErrResponseBodyRead = errors.New("failed to read response body")   // Wraps body read/parse errors
	ErrParsing          = errors.New("parsing error")                  // Wraps HTML / robots parse errors
	ErrConfigValidation = errors.New("configuration validation error") // Fatal config problems
	ErrDatabase         = errors.New("database error")                 // Wraps badger errors
	ErrQueueClosed      = errors.New("queue is closed")                // Enqueue after Close
	ErrHTMLRetrieval    = errors.New("HTML could not be retrieved")    // Page answered with a non-2xx status
	ErrNotHTML          = errors.New("expected type text/html")        // Page is not an HTML document
)

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "Input_InvalidURL"
	case errors.Is(err, ErrProxyConfig):
		return "Proxy_Config"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "robots") {
			return "Content_ParsingRobots"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrQueueClosed):
		return "Queue_Closed"
	case errors.Is(err, ErrHTMLRetrieval):
		return "Page_HTTPStatus"
	case errors.Is(err, ErrNotHTML):
		return "Page_ContentType"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"):
		return "Network_TimeoutGeneric"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	case strings.Contains(lowerErrMsg, "proxyconnect"):
		return "Network_Proxy"
	case strings.Contains(lowerErrMsg, "redirects"):
		return "Network_TooManyRedirects"
	}

	return "Unknown"
}
