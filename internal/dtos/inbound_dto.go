package dtos

import "strings"

// InboundEmailRequest is the JSON body CloudMailin posts for each message.
type InboundEmailRequest struct {
	Envelope struct {
		To   string `json:"to"`
		From string `json:"from"`
	} `json:"envelope"`
	Headers MailHeaders `json:"headers"`
	Plain   string      `json:"plain"`
	HTML    string      `json:"html"`
}

// MailHeaders holds header values as sent: a string, or a list of strings
// when the header repeats.
type MailHeaders map[string]interface{}

// Get returns the first value of the named header, matching case-insensitively.
func (h MailHeaders) Get(name string) string {
	for k, v := range h {
		if !strings.EqualFold(k, name) {
			continue
		}
		switch val := v.(type) {
		case string:
			return val
		case []interface{}:
			for _, item := range val {
				if s, ok := item.(string); ok {
					return s
				}
			}
		}
	}
	return ""
}
