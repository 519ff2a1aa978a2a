package messenger

import "context"

// File is one upload to push back to a channel.
type File struct {
	Content     []byte
	Filename    string
	ContentType string
}

// Messenger is the outbound chat capability the dialogue consumes. Send
// failures surface as errors; the flow logs and continues (it never blocks a
// state transition on a notification failure).
type Messenger interface {
	SendMessage(ctx context.Context, channelID, text string) error
	// SendImage delivers an image by URL or data URI with a caption.
	SendImage(ctx context.Context, channelID, image, caption string) error
	SendFiles(ctx context.Context, channelID string, files []File, caption string) error
}

// DMOpener is the optional transport capability of opening a direct-message
// channel with a user. The gateway uses it to move public-channel triggers
// into a private dialogue.
type DMOpener interface {
	OpenDM(ctx context.Context, userID string) (string, error)
}
