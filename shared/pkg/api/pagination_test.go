package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query    string
		expected PageRequest
	}{
		{query: "", expected: PageRequest{Page: 1, PageSize: 20}},
		{query: "page=3&pageSize=50", expected: PageRequest{Page: 3, PageSize: 50}},
		{query: "page=0&pageSize=500", expected: PageRequest{Page: 1, PageSize: 100}},
		{query: "page=abc&pageSize=-1", expected: PageRequest{Page: 1, PageSize: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			assert.Equal(t, tt.expected, ParsePagination(c))
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse([]string{"a", "b"}, PageRequest{Page: 2, PageSize: 2}, 5)
	assert.Equal(t, int64(3), resp.TotalPages)
	assert.True(t, resp.HasNext)
	assert.True(t, resp.HasPrev)

	empty := NewPageResponse[string](nil, DefaultPageRequest(), 0)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, int64(1), empty.TotalPages)
	assert.False(t, empty.HasNext)
}

func TestPageRequest_Offset(t *testing.T) {
	p := PageRequest{Page: 3, PageSize: 10}
	assert.Equal(t, int64(20), p.GetOffset())
	assert.Equal(t, int64(10), p.GetLimit())
}
