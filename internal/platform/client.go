package platform

import "context"

// FileProcessingState mirrors spec §9 redesign note: "Reshape [ad-hoc
// polling] to a bounded-attempts loop with a typed ProcessingState
// (pending/ready/failed) and an explicit deadline."
type FileProcessingState string

const (
	FileProcessingPending FileProcessingState = "pending"
	FileProcessingReady   FileProcessingState = "ready"
	FileProcessingFailed  FileProcessingState = "failed"
)

// FileInfo is the result of polling files_info (spec §6).
type FileInfo struct {
	FileID    string
	MimeType  string
	Permalink string
	State     FileProcessingState
}

// Client is the subset of chat-platform operations the core consumes
// (spec §6). The concrete implementation (HTTP calls to the real chat
// platform) is an external collaborator out of this spec's scope.
type Client interface {
	PostMessage(ctx context.Context, channel, text string, blocks []Block) (messageTS string, err error)
	PostThreaded(ctx context.Context, channel, threadTS, text string, blocks []Block) error
	UploadFile(ctx context.Context, data []byte, filename, title, channel string) (fileID string, err error)
	FilesInfo(ctx context.Context, fileID string) (FileInfo, error)
	AddReaction(ctx context.Context, channel, ts, name string) error

	UsersInfo(ctx context.Context, userID string) (DisplayProfile, error)
	ConversationsMembers(ctx context.Context, channelID, cursor string) (members []string, nextCursor string, err error)
	ConversationsOpen(ctx context.Context, userID string) (dmChannelID string, err error)

	EmojiList(ctx context.Context) (map[string]string, error)

	CanvasCreate(ctx context.Context, channel, markdown string) (canvasID string, err error)
	CanvasEdit(ctx context.Context, canvasID, markdown string) error
	CanvasDelete(ctx context.Context, canvasID string) error
	SetTopic(ctx context.Context, channel, topic string) error
	SetPurpose(ctx context.Context, channel, purpose string) error
}

// DisplayProfile is the minimal shape the platform client returns for a
// user; internal/profile.UserProfile wraps this with caching.
type DisplayProfile struct {
	UserID        string
	DisplayName   string
	RealName      string
	PreferredName string
	Title         string
	Timezone      string
	TZOffsetSec   int
	PhotoURLs     map[string]string
	IsDeleted     bool
	IsBot         bool
	CustomFields  map[string]string
}
