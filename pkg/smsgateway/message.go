package smsgateway

const (
	DefaultChannel     = "sms"
	DefaultContentType = "Text"
)

// Message is the JSON body POSTed to the gateway's message endpoint.
type Message struct {
	Channel string  `json:"channel"`
	From    string  `json:"from"`
	To      string  `json:"to"`
	Content Content `json:"content"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewMessage builds a text message; channel falls back to "sms".
func NewMessage(channel, from, to, text string) Message {
	if channel == "" {
		channel = DefaultChannel
	}
	return Message{
		Channel: channel,
		From:    from,
		To:      to,
		Content: Content{
			Type: DefaultContentType,
			Text: text,
		},
	}
}
