package openapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `
openapi: 3.0.3
info:
  title: test
  version: 1.0.0
paths:
  /items/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: string
    get:
      responses:
        "200":
          description: item
          content:
            application/json:
              schema:
                type: object
                required: [id, quantity]
                properties:
                  id:
                    type: string
                  quantity:
                    type: integer
                    minimum: 0
    put:
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [quantity]
              properties:
                quantity:
                  type: integer
                  minimum: 1
      responses:
        "204":
          description: updated
`

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParse(t *testing.T) {
	v, err := Parse(context.Background(), []byte(testDocument))
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /items/{id}", "PUT /items/{id}"}, v.Operations())
	assert.True(t, v.HasOperation("get", "/items/{id}"))
	assert.False(t, v.HasOperation("DELETE", "/items/{id}"))
	assert.False(t, v.HasOperation("GET", "/items"))

	_, err = Parse(context.Background(), []byte("openapi: 3.0.3\ninfo: {}\npaths: {}\n"))
	assert.Error(t, err)
}

func TestValidator_ValidateResponse(t *testing.T) {
	v, err := Parse(context.Background(), []byte(testDocument))
	require.NoError(t, err)

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "matching body", status: http.StatusOK, body: `{"id":"a","quantity":3,"extra":true}`},
		{name: "missing required field", status: http.StatusOK, body: `{"id":"a"}`, wantErr: true},
		{name: "wrong type", status: http.StatusOK, body: `{"id":"a","quantity":"three"}`, wantErr: true},
		{name: "below minimum", status: http.StatusOK, body: `{"id":"a","quantity":-1}`, wantErr: true},
		{name: "undocumented status", status: http.StatusTeapot, body: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/items/a", nil)
			resp := jsonResponse(tt.status, tt.body)

			err := v.ValidateResponse(context.Background(), req, resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, tt.body, string(body))
		})
	}
}

func TestValidator_ValidateRequest(t *testing.T) {
	v, err := Parse(context.Background(), []byte(testDocument))
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		path    string
		body    string
		wantErr bool
	}{
		{name: "valid body", method: http.MethodPut, path: "/items/a", body: `{"quantity":2}`},
		{name: "invalid body", method: http.MethodPut, path: "/items/a", body: `{"quantity":0}`, wantErr: true},
		{name: "unknown route", method: http.MethodGet, path: "/things/a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			err := v.ValidateRequest(context.Background(), req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
