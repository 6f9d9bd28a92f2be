package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/factuhub/backend/internal/interfaces/http/dto"
	"github.com/factuhub/backend/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig(t *testing.T) {
	t.Run("returns stored config", func(t *testing.T) {
		f := newAPIFixture(t)

		cfg := domain.DefaultTenantConfig(f.tenantID)
		cfg.Mode = domain.ModeRequirement
		cfg.FlowControlSeconds = 120
		require.NoError(t, f.configs.Save(t.Context(), cfg))

		w := f.do(http.MethodGet, "/api/v1/verifactu/config", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "REQUIREMENT", data["mode"])
		assert.Equal(t, float64(120), data["flow_control_seconds"])
	})

	t.Run("falls back to defaults for an unknown tenant", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tenantID = uuid.New()

		w := f.do(http.MethodGet, "/api/v1/verifactu/config", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "LIVE", data["mode"])
		assert.Equal(t, "TESTING", data["environment"])
		assert.Equal(t, float64(60), data["flow_control_seconds"])
	})
}

func TestUpdateConfig(t *testing.T) {
	validBody := map[string]any{
		"mode":                       "REQUIREMENT",
		"environment":                "PRODUCTION",
		"enabled":                    true,
		"auto_submit":                false,
		"flow_control_seconds":       90,
		"max_records_per_submission": 50,
	}

	t.Run("replaces the configuration", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(http.MethodPut, "/api/v1/verifactu/config", validBody)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "REQUIREMENT", data["mode"])
		assert.Equal(t, "PRODUCTION", data["environment"])
		assert.Equal(t, false, data["auto_submit"])
		assert.Equal(t, float64(50), data["max_records_per_submission"])
	})

	t.Run("sequence counter survives the update", func(t *testing.T) {
		f := newAPIFixture(t)

		appended := f.do(http.MethodPost, "/api/v1/verifactu/events", appendEventBody(uuid.New()))
		require.Equal(t, http.StatusCreated, appended.Code)

		w := f.do(http.MethodPut, "/api/v1/verifactu/config", validBody)
		require.Equal(t, http.StatusOK, w.Code)

		stored, err := f.configs.FindByTenant(t.Context(), f.tenantID)
		require.NoError(t, err)
		assert.False(t, stored.AutoSubmit)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		f := newAPIFixture(t)

		body := map[string]any{}
		for k, v := range validBody {
			body[k] = v
		}
		body["mode"] = "BATCH"

		w := f.do(http.MethodPut, "/api/v1/verifactu/config", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects zero max records", func(t *testing.T) {
		f := newAPIFixture(t)

		body := map[string]any{}
		for k, v := range validBody {
			body[k] = v
		}
		body["max_records_per_submission"] = 0

		w := f.do(http.MethodPut, "/api/v1/verifactu/config", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetCertificateStatus(t *testing.T) {
	t.Run("reports a healthy certificate", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(http.MethodGet, "/api/v1/verifactu/certificate", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := decodeResponse(t, w).Data.(map[string]any)
		assert.False(t, data["blocking"].(bool))
		assert.False(t, data["warning"].(bool))
		assert.Greater(t, data["days_until_expiration"].(float64), float64(300))
	})

	t.Run("missing certificate is 404", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tenantID = uuid.New()

		w := f.do(http.MethodGet, "/api/v1/verifactu/certificate", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeCertificateMissing, resp.Error.Code)
	})
}

func certificateUpload(t *testing.T, container []byte, password string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if container != nil {
		part, err := writer.CreateFormFile("certificate", "seal.p12")
		require.NoError(t, err)
		_, err = part.Write(container)
		require.NoError(t, err)
	}
	if password != "" {
		require.NoError(t, writer.WriteField("password", password))
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestUpdateCertificate(t *testing.T) {
	t.Run("stores a new container and reports its status", func(t *testing.T) {
		f := newAPIFixture(t)
		f.tenantID = uuid.New()

		body, contentType := certificateUpload(t, []byte("pkcs12-container"), "secret")
		req := httptest.NewRequest(http.MethodPut, "/api/v1/verifactu/certificate", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(middleware.TenantHeaderKey, f.tenantID.String())
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.False(t, data["blocking"].(bool))
		assert.Equal(t, "CN=Test Seal", data["subject"])
	})

	t.Run("missing file is a bad request", func(t *testing.T) {
		f := newAPIFixture(t)

		body, contentType := certificateUpload(t, nil, "secret")
		req := httptest.NewRequest(http.MethodPut, "/api/v1/verifactu/certificate", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(middleware.TenantHeaderKey, f.tenantID.String())
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing password is a bad request", func(t *testing.T) {
		f := newAPIFixture(t)

		body, contentType := certificateUpload(t, []byte("pkcs12-container"), "")
		req := httptest.NewRequest(http.MethodPut, "/api/v1/verifactu/certificate", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(middleware.TenantHeaderKey, f.tenantID.String())
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
