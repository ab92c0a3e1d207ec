package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLike_ValidateExactlyOneTarget(t *testing.T) {
	id := uint(3)
	zero := uint(0)

	assert.NoError(t, (&Like{UserID: 1, PostID: &id}).Validate())
	assert.NoError(t, (&Like{UserID: 1, CommentID: &id}).Validate())
	assert.ErrorIs(t, (&Like{UserID: 1}).Validate(), ErrLikeTarget)
	assert.ErrorIs(t, (&Like{UserID: 1, PostID: &id, CommentID: &id}).Validate(), ErrLikeTarget)
	assert.ErrorIs(t, (&Like{UserID: 1, PostID: &zero}).Validate(), ErrLikeTarget)
}
