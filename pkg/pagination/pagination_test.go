// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avelarcompany/gateway/pkg/pagination"
)

/*
TestFromRequest verifies defaults and clamping.
*/
func TestFromRequest(t *testing.T) {
	tests := []struct {
		query string
		want  pagination.Params
	}{
		{"", pagination.Params{Page: 1, Limit: 50}},
		{"?page=3&limit=10", pagination.Params{Page: 3, Limit: 10}},
		{"?page=-1&limit=0", pagination.Params{Page: 1, Limit: 50}},
		{"?page=x&limit=9999", pagination.Params{Page: 1, Limit: 200}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, pagination.FromRequest(httptest.NewRequest("GET", "/audit"+tt.query, nil)))
		})
	}
}

/*
TestWindow verifies page bounds never exceed the slice.
*/
func TestWindow(t *testing.T) {
	start, end := pagination.Params{Page: 2, Limit: 10}.Window(15)
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)

	start, end = pagination.Params{Page: 5, Limit: 10}.Window(15)
	assert.Equal(t, 15, start)
	assert.Equal(t, 15, end)

	assert.Equal(t, 3, pagination.NewMeta(1, 10, 21).TotalPages)
}
