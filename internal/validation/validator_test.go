package validation

import (
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postRequest struct {
	Title string   `json:"title" validate:"notblank,max=200"`
	Body  string   `json:"body" validate:"notblank"`
	Sort  string   `json:"sortBy" validate:"omitempty,oneof=new trending popular"`
	Tags  []string `json:"tags" validate:"max=3"`
}

func TestStruct(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		req     postRequest
		wantMsg string
	}{
		{"Valid", postRequest{Title: "Hello", Body: "World", Sort: "trending"}, ""},
		{"Blank Title", postRequest{Title: "   ", Body: "World"}, "title is required"},
		{"Bad Sort", postRequest{Title: "a", Body: "b", Sort: "old"}, "sortBy must be one of: new trending popular"},
		{"Too Many Tags", postRequest{Title: "a", Body: "b", Tags: []string{"1", "2", "3", "4"}}, "tags must be at most 3"},
		{"Two Failures", postRequest{}, "title is required; body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.req)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestGetValidatorIsShared(t *testing.T) {
	t.Parallel()
	assert.Same(t, GetValidator(), GetValidator())
}
