package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/catalogsync/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(mw...)
	r.POST("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine()

	t.Run("generated when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Body.String())
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("reuses caller id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		r.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Body.String())
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})
}

func TestHookToken(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{"valid token", "s3cret", "s3cret", http.StatusOK},
		{"wrong token", "s3cret", "nope", http.StatusForbidden},
		{"missing token", "s3cret", "", http.StatusForbidden},
		{"nothing configured", "", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(HookToken(tt.configured))
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set(RequestIDHeader, "req-1")
			if tt.sent != "" {
				req.Header.Set(HookTokenHeader, tt.sent)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusForbidden {
				var resp dto.WebhookResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, dto.StatusError, resp.Status)
				assert.Equal(t, dto.MsgForbidden, resp.Message)
				assert.Equal(t, "req-1", resp.RequestID)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	r := newEngine(BodyLimit(8))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku":"A1","qty":5}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestValidationDetails(t *testing.T) {
	type item struct {
		SKU string `json:"sku" validate:"required"`
		Qty *int   `json:"qty" validate:"required,gte=0"`
	}
	v := NewValidator()

	err := v.Struct(item{})
	require.Error(t, err)
	details := ValidationDetails(err)
	require.Len(t, details, 2)
	assert.Equal(t, "sku", details[0].Field)
	assert.Equal(t, "This field is required", details[0].Message)
	assert.Equal(t, "qty", details[1].Field)

	neg := -1
	details = ValidationDetails(v.Struct(item{SKU: "A1", Qty: &neg}))
	require.Len(t, details, 1)
	assert.Equal(t, "Must be greater than or equal to 0", details[0].Message)

	assert.Nil(t, ValidationDetails(assert.AnError))
}
