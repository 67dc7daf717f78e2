package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/eodatahub/action-creator/pkg/api/middleware"
)

// AuthHandler proxies token issue and introspection to the identity
// provider.
type AuthHandler struct {
	tokenEndpoint         string
	introspectionEndpoint string
	httpClient            *http.Client
	log                   *logrus.Entry
}

// NewAuthHandler builds the auth proxy.
func NewAuthHandler(tokenEndpoint, introspectionEndpoint string, httpClient *http.Client, log *logrus.Entry) *AuthHandler {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &AuthHandler{
		tokenEndpoint:         tokenEndpoint,
		introspectionEndpoint: introspectionEndpoint,
		httpClient:            httpClient,
		log:                   log,
	}
}

// Token forwards the password-grant form to the identity provider and
// relays its response, including 401 on bad credentials.
func (h *AuthHandler) Token(c *gin.Context) {
	h.proxyForm(c, h.tokenEndpoint, "")
}

// Introspect forwards the caller's token for introspection.
func (h *AuthHandler) Introspect(c *gin.Context) {
	bearer, _ := middleware.BearerFromHeader(c.GetHeader("Authorization"))
	h.proxyForm(c, h.introspectionEndpoint, bearer)
}

func (h *AuthHandler) proxyForm(c *gin.Context, endpoint, bearer string) {
	if endpoint == "" {
		middleware.AbortWithError(c, http.StatusNotImplemented, []string{"server"},
			"not_implemented", "identity provider is not configured")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, []string{"body"},
			"invalid_request", "cannot read request body")
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, []string{"server"},
			"internal_server_error", "cannot reach identity provider")
		return
	}
	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		contentType = "application/x-www-form-urlencoded"
	}
	req.Header.Set("Content-Type", contentType)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.log.WithError(err).Error("identity provider unreachable")
		middleware.AbortWithError(c, http.StatusBadGateway, []string{"server"},
			"identity_provider_unavailable", "identity provider unreachable")
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadGateway, []string{"server"},
			"identity_provider_unavailable", "cannot read identity provider response")
		return
	}

	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), payload)
}
