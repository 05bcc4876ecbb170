package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginated(t *testing.T) {
	r := Paginated(http.StatusOK, []string{"a", "b"}, 2, 2, 5)

	assert.Equal(t, "success", r.Status)
	page, ok := r.Data.(Page)
	if assert.True(t, ok) {
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, 2, page.Page)
		assert.EqualValues(t, 5, page.Total)
	}

	assert.Equal(t, 0, Paginated(http.StatusOK, nil, 1, 0, 5).Data.(Page).TotalPages)
}

func TestErrorWithCode(t *testing.T) {
	r := ErrorWithCode(http.StatusConflict, "conflict", "already decided")
	assert.Equal(t, "error", r.Status)
	assert.Equal(t, http.StatusConflict, r.StatusCode)
	assert.Equal(t, "conflict", r.Code)
	assert.Equal(t, "already decided", r.Error)
}
