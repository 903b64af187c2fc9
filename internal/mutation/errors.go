package mutation

import (
	"errors"
	"fmt"

	"github.com/kingrea/socialhub/internal/feedapi"
)

// ValidationError is a precondition that failed before any request was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mutation: invalid %s: %s", e.Field, e.Message)
}

// failureText holds the user-facing messages of one mutation.
type failureText struct {
	// rejected is shown when the server answered with an error and no detail.
	rejected string
	// broken is shown when no usable response arrived.
	broken string
	// detail allows the server's own message to replace rejected.
	detail bool
}

var (
	likeFailure = failureText{
		rejected: "Failed to update like status",
		broken:   "An error occurred while updating like status",
	}
	createFailure = failureText{
		rejected: "Failed to create post",
		broken:   "An error occurred while creating the post.",
		detail:   true,
	}
	loadPostFailure = failureText{
		rejected: "Error loading post data",
		broken:   "Error loading post data",
	}
	updateFailure = failureText{
		rejected: "Failed to update post",
		broken:   "Error updating post",
		detail:   true,
	}
	deleteFailure = failureText{
		rejected: "Failed to delete post",
		broken:   "Error deleting post",
		detail:   true,
	}
	commentFailure = failureText{
		rejected: "Failed to post comment",
		broken:   "An error occurred while posting the comment",
		detail:   true,
	}
	bioFailure = failureText{
		rejected: "Failed to update bio. Please try again.",
		broken:   "An error occurred while updating bio.",
	}
	passwordFailure = failureText{
		rejected: "Failed to change password. Please check your current password.",
		broken:   "An error occurred while changing the password.",
		detail:   true,
	}
	feedFailure = failureText{
		rejected: "Failed to load posts",
		broken:   "Failed to load posts",
	}
)

// message picks the most specific text for err. Transport failures and
// unusable success bodies share the broken text; rejections prefer the
// server's detail.
func (f failureText) message(err error) string {
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return invalid.Message
	}
	var malformed *feedapi.MalformedResponseError
	if feedapi.IsTransport(err) || errors.As(err, &malformed) {
		return f.broken
	}
	if f.detail {
		if detail, ok := feedapi.Detail(err); ok {
			return detail
		}
	}
	return f.rejected
}
