package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func gunzip(t *testing.T, data []byte) []byte {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer zr.Close()
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	return out
}

// contractEcho разбирает тело договора и возвращает идентификатор объекта.
func contractEcho(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PropertyUID int64 `json:"propertyUid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"입력값을 확인해 주세요."}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"propertyUid": payload.PropertyUID})
}

func TestGzipMiddleware(t *testing.T) {
	payload := []byte(`{"category":"MONTHLY","propertyUid":9,"lessorOrSellerUids":[1],"lesseeOrBuyerUids":[2]}`)

	tests := []struct {
		name           string
		body           []byte
		gzipRequest    bool
		acceptGzip     bool
		wantStatus     int
		wantCompressed bool
		wantBody       string
	}{
		{
			name:           "compressed contract payload, compressed reply",
			body:           gzipBytes(t, payload),
			gzipRequest:    true,
			acceptGzip:     true,
			wantStatus:     http.StatusCreated,
			wantCompressed: true,
			wantBody:       `{"propertyUid":9}`,
		},
		{
			name:        "compressed contract payload, plain reply",
			body:        gzipBytes(t, payload),
			gzipRequest: true,
			wantStatus:  http.StatusCreated,
			wantBody:    `{"propertyUid":9}`,
		},
		{
			name:           "plain payload, error body compressed",
			body:           []byte(`{"propertyUid":"nine"}`),
			acceptGzip:     true,
			wantStatus:     http.StatusBadRequest,
			wantCompressed: true,
			wantBody:       `{"error":"입력값을 확인해 주세요."}`,
		},
		{
			name:        "corrupt gzip body",
			body:        []byte("not gzip"),
			gzipRequest: true,
			acceptGzip:  true,
			wantStatus:  http.StatusBadRequest,
		},
	}

	handler := GzipMiddleware(http.HandlerFunc(contractEcho))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/contracts", bytes.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptGzip {
				req.Header.Set("Accept-Encoding", "gzip")
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()
			require.Equal(t, tt.wantStatus, res.StatusCode)

			if tt.wantBody == "" {
				return
			}

			raw, err := io.ReadAll(res.Body)
			require.NoError(t, err)

			if tt.wantCompressed {
				assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
				raw = gunzip(t, raw)
			} else {
				assert.Empty(t, res.Header.Get("Content-Encoding"))
			}
			assert.JSONEq(t, tt.wantBody, string(raw))
		})
	}
}

func TestGzipMiddleware_SkipsNonJSON(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/files/lease.pdf", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "%PDF-1.7", rec.Body.String())
}
