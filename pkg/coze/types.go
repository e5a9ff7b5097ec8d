package coze

// ChatRequest is the body of a POST /v3/chat request.
type ChatRequest struct {
	BotID              string              `json:"bot_id"`
	UserID             string              `json:"user_id"`
	Stream             bool                `json:"stream"`
	AutoSaveHistory    bool                `json:"auto_save_history"`
	AdditionalMessages []AdditionalMessage `json:"additional_messages"`
}

// AdditionalMessage is a message appended to the conversation for this chat.
type AdditionalMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}
