package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pdf-chat-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, resp *http.Response) BaseResponse[any] {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body BaseResponse[any]
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestStatusForMapsKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", apperror.ErrEmptyQuestion, 400},
		{"unauthorized", apperror.New(apperror.KindUnauthorized, "no"), 401},
		{"forbidden", apperror.New(apperror.KindForbidden, "no"), 403},
		{"ingestion", apperror.Ingestion("Ingestion failed", errors.New("disk")), 500},
		{"retrieval", apperror.Retrieval("Retrieval failed", errors.New("down")), 502},
		{"completion", apperror.Completion("Completion failed", errors.New("down")), 502},
		{"rate limited", apperror.New(apperror.KindRateLimited, "slow down"), 429},
		{"fiber error", fiber.NewError(fiber.StatusNotFound, "missing"), 404},
		{"plain error", errors.New("boom"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := StatusFor(tt.err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestStatusForHidesUnknownErrors(t *testing.T) {
	_, msg := StatusFor(errors.New("password=hunter2"))
	assert.Equal(t, "Internal server error", msg)

	_, msg = StatusFor(apperror.Ingestion("Ingestion failed", errors.New("embed: timeout")))
	assert.Equal(t, "Ingestion failed: embed: timeout", msg)
}

func TestErrorHandlerMiddlewareRendersEnvelope(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return apperror.ErrEmptyQuestion
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, 400, body.Code)
	assert.Equal(t, "Question cannot be empty.", body.Message)
}

func TestValidateRequestUsesJSONNames(t *testing.T) {
	type req struct {
		SessionId string `json:"session_id" validate:"notblank"`
		Question  string `json:"question" validate:"required"`
	}

	err := ValidateRequest(req{SessionId: "  ", Question: "q"})
	require.Error(t, err)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, "session_id cannot be empty.", err.(*apperror.Error).Message)

	assert.NoError(t, ValidateRequest(req{SessionId: "s", Question: "q"}))
}

func TestAPIKeyMiddleware(t *testing.T) {
	newApp := func(key string) *fiber.App {
		app := fiber.New()
		app.Use(APIKeyMiddleware("PDF-CHAT-API-KEY", key))
		app.Get("/", func(c *fiber.Ctx) error {
			return c.SendString("ok")
		})
		return app
	}

	tests := []struct {
		name      string
		serverKey string
		header    string
		code      int
		message   string
	}{
		{"missing header", "secret", "", 401, "API key missing."},
		{"wrong key", "secret", "nope", 403, "Invalid API key."},
		{"server key unset", "", "anything", 401, "MISSING API KEY"},
		{"valid", "secret", "secret", 200, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("PDF-CHAT-API-KEY", tt.header)
			}
			resp, err := newApp(tt.serverKey).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			if tt.message != "" {
				assert.Equal(t, tt.message, decodeBody(t, resp).Message)
			}
		})
	}
}

func TestRateLimitKeysOnHeaderThenIP(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimitMiddleware(2, time.Minute, "PDF-CHAT-API-KEY", nil))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	call := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if key != "" {
			req.Header.Set("PDF-CHAT-API-KEY", key)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, 200, call("a"))
	assert.Equal(t, 200, call("a"))
	assert.Equal(t, 429, call("a"))

	// A different key has its own budget.
	assert.Equal(t, 200, call("b"))

	// No key falls back to the client address.
	assert.Equal(t, 200, call(""))
	assert.Equal(t, 200, call(""))
	assert.Equal(t, 429, call(""))
}
