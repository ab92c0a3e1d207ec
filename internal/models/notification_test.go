package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireValidationError(t *testing.T, err error) {
	t.Helper()
	var appErr *AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, CodeValidation, appErr.Code)
}

func TestNewNotification_PerTypeReferences(t *testing.T) {
	sender := uint(2)

	tests := []struct {
		name    string
		draft   NotificationDraft
		wantErr bool
	}{
		{"like with post", LikeNotification{PostID: 9}, false},
		{"like without post", LikeNotification{}, true},
		{"like on comment still needs post", LikeNotification{CommentID: 4}, true},
		{"comment with post", CommentNotification{PostID: 9, CommentID: 4}, false},
		{"comment without post", CommentNotification{CommentID: 4}, true},
		{"message with message", MessageNotification{MessageID: 5}, false},
		{"message without message", MessageNotification{}, true},
		{"mention with comment", MentionNotification{CommentID: 4}, false},
		{"mention with post", MentionNotification{PostID: 9}, false},
		{"mention with neither", MentionNotification{}, true},
		{"follow", FollowNotification{}, false},
		{"system", SystemNotification{}, false},
		{"admin without post", AdminNotification{}, false},
		{"post review needs post", PostNotification{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNotification(1, &sender, "content", NotificationMetadata{}, tt.draft)
			if tt.wantErr {
				requireValidationError(t, err)
				assert.Nil(t, n)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.draft.Type(), n.Type)
			assert.NoError(t, n.ValidateRefs())
		})
	}
}

func TestNewNotification_MapsReferences(t *testing.T) {
	n, err := NewNotification(1, nil, "c", NotificationMetadata{TargetURL: "/posts/9"}, CommentNotification{PostID: 9, CommentID: 4})
	require.NoError(t, err)
	require.NotNil(t, n.PostID)
	require.NotNil(t, n.CommentID)
	assert.Equal(t, uint(9), *n.PostID)
	assert.Equal(t, uint(4), *n.CommentID)
	assert.Nil(t, n.MessageID)
	assert.Nil(t, n.SenderID)
	assert.Equal(t, "/posts/9", n.Metadata.TargetURL)
}

func TestNewNotification_RequiresRecipientAndContent(t *testing.T) {
	_, err := NewNotification(0, nil, "c", NotificationMetadata{}, SystemNotification{})
	requireValidationError(t, err)

	_, err = NewNotification(1, nil, "", NotificationMetadata{}, SystemNotification{})
	requireValidationError(t, err)

	_, err = NewNotification(1, nil, "c", NotificationMetadata{}, nil)
	requireValidationError(t, err)
}

func TestNotification_BeforeCreateRejectsBareRow(t *testing.T) {
	n := &Notification{RecipientID: 1, Type: NotificationLike, Content: "x"}
	requireValidationError(t, n.BeforeCreate(nil))

	n = &Notification{RecipientID: 1, Type: "bogus", Content: "x"}
	requireValidationError(t, n.BeforeCreate(nil))
}
