package validator

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Kind is the category of a validation failure. Each category maps to its own
// user-facing message; none are merged.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindUnreachable      Kind = "unreachable"
	KindWrongContentType Kind = "wrong_content_type"
	KindTimeout          Kind = "timeout"
	KindTLS              Kind = "tls"
	KindRedirectLoop     Kind = "redirect_loop"
	KindConnection       Kind = "connection"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

const maxRedirects = 10

var errTooManyRedirects = errors.New("too many redirects")

// Validator probes a URL before any crawl resources are committed to it.
type Validator struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

func New(timeout time.Duration, userAgent string, logger *zap.Logger) *Validator {
	return &Validator{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger,
	}
}

// Validate returns nil if the URL is syntactically valid, reachable with
// status 200 and serves HTML. Syntax problems are rejected without touching
// the network.
func (v *Validator) Validate(ctx context.Context, rawURL string) *Error {
	if rawURL == "" {
		return &Error{Kind: KindInvalidInput, Message: "URL cannot be empty."}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &Error{Kind: KindInvalidInput, Message: "Malformed URL."}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return &Error{Kind: KindInvalidInput, Message: "Invalid URL format. Scheme (http/https) or domain missing."}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Kind: KindInvalidInput, Message: "Malformed URL."}
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return v.classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Kind:    KindUnreachable,
			Message: fmt.Sprintf("Website unreachable. Status Code: %d", resp.StatusCode),
		}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") {
		v.logger.Warn("invalid content type", zap.String("url", rawURL), zap.String("content_type", contentType))
		return &Error{
			Kind:    KindWrongContentType,
			Message: fmt.Sprintf("URL does not point to a website (Content-Type: %s). Expecting text/html.", contentType),
		}
	}

	return nil
}

func (v *Validator) classify(rawURL string, err error) *Error {
	if errors.Is(err, errTooManyRedirects) {
		v.logger.Error("redirect loop", zap.String("url", rawURL))
		return &Error{Kind: KindRedirectLoop, Message: "Too many redirects. The website is looping."}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("Connection timed out (Limit: %s).", v.timeout),
		}
	}

	if isCertificateError(err) {
		v.logger.Error("tls error", zap.String("url", rawURL), zap.Error(err))
		return &Error{Kind: KindTLS, Message: "SSL Certificate verification failed. The website might be insecure."}
	}

	v.logger.Error("validation error", zap.String("url", rawURL), zap.Error(err))
	return &Error{Kind: KindConnection, Message: fmt.Sprintf("Connection failed: %v", err)}
}

func isCertificateError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidCert x509.CertificateInvalidError
	return errors.As(err, &invalidCert)
}
