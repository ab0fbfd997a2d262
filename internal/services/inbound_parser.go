package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/justsurfingit/jobsync/internal/dtos"
)

// ParsedEmail is what survives of a forwarded message once the forwarding
// wrapper is peeled off.
type ParsedEmail struct {
	OriginalSender string
	ForwarderEmail string
	ReceiverEmail  string
	TrackingCode   string
	SentDate       string
	Subject        string
	Content        string
}

// Forwarding blocks as written by the common mail clients, most specific first.
var forwardedFromPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)-+\s*Forwarded message\s*-+[\s\S]*?From:\s*[^<]*<([^>]+@[^>]+)>`),
	regexp.MustCompile(`(?i)-----Original Message-----[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	regexp.MustCompile(`(?i)Begin forwarded message:[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	regexp.MustCompile(`(?i)----- Forwarded Message -----[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	regexp.MustCompile(`(?i)Forwarded message:[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	regexp.MustCompile(`(?i)--- Forwarded message ---[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	regexp.MustCompile(`(?i)Forwarded by[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	regexp.MustCompile(`(?i)Forwarded:[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	regexp.MustCompile(`(?i)Fwd:[\s\S]*?From:\s*([^<\n]+@[^>\n]+)`),
	// Any From line, with and without a display name.
	regexp.MustCompile(`(?i)From:\s*[^<]*<([^>]+@[^>]+)>`),
	regexp.MustCompile(`(?i)From:\s*([^<\n]+@[^>\n]+)`),
}

var (
	anyAddress       = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	headerAddress    = regexp.MustCompile(`<?([^<\s]+@[^>\s]+)>?`)
	srsAddress       = regexp.MustCompile(`SRS0=[^=]+=\d+=([^=]+)=([^@]+)@`)
	forwardedTo      = regexp.MustCompile(`(?i)-+\s*Forwarded message\s*-+[\s\S]*?To:\s*<?([^<\n]+@[^>\n]+)>?`)
	forwardedDate    = regexp.MustCompile(`(?i)-+\s*Forwarded message\s*-+[\s\S]*?Date:\s*([^\n]+)`)
	anyDate          = regexp.MustCompile(`(?i)Date:\s*([^\n]+)`)
	forwardedSubject = regexp.MustCompile(`(?i)-+\s*Forwarded message\s*-+[\s\S]*?Subject:\s*([^\n]+)`)
	fwdPrefix        = regexp.MustCompile(`(?i)^(Fwd?:\s*)+`)
	forwardedBody    = regexp.MustCompile(`(?i)-+\s*Forwarded message\s*-+[\s\S]*?To:\s*[^\n]+\s*\n\s*\n([\s\S]+)`)
)

// Where the original body ends.
var bodyCutMarkers = []*regexp.Regexp{
	regexp.MustCompile(`\n\s*--\s*\n`),
	regexp.MustCompile(`(?i)\n\s*-+\s*Forwarded message\s*-+`),
	regexp.MustCompile(`(?i)\nOn .+ wrote:`),
}

// Address fragments that belong to forwarders, personal mailboxes or robots
// rather than to a recruiter.
var nonRecruiterFragments = []string{
	"eforward", "registrar-servers",
	"gmail.com", "outlook.com", "yahoo.com", "icloud.com", "hotmail.com",
	"live.com", "aol.com", "mail.com", "protonmail.com", "tutanota.com",
	"company.com", "example.com",
	"noreply", "no-reply", "donotreply",
}

// ParseInbound extracts the original message from a forwarded email. domain
// is the tracking domain users forward to.
func ParseInbound(req *dtos.InboundEmailRequest, domain string, now time.Time) ParsedEmail {
	content := req.Plain
	if content == "" {
		content = req.HTML
	}

	receiver := receiverAddress(req, domain)
	return ParsedEmail{
		OriginalSender: originalSender(content, req),
		ForwarderEmail: forwarderAddress(req.Envelope.From, content),
		ReceiverEmail:  receiver,
		TrackingCode:   strings.ToUpper(strings.SplitN(receiver, "@", 2)[0]),
		SentDate:       sentDate(content, req.Headers, now),
		Subject:        originalSubject(content, req.Headers),
		Content:        originalBody(content),
	}
}

func originalSender(content string, req *dtos.InboundEmailRequest) string {
	for _, re := range forwardedFromPatterns {
		if m := re.FindStringSubmatch(content); m != nil {
			return stripAngles(m[1])
		}
	}

	for _, addr := range anyAddress.FindAllString(content, -1) {
		if looksLikeRecruiter(addr) {
			return addr
		}
	}

	// Sent directly rather than forwarded.
	if from := req.Envelope.From; from != "" && !strings.Contains(from, "eforward") {
		return from
	}

	if m := headerAddress.FindStringSubmatch(req.Headers.Get("From")); m != nil {
		return stripAngles(m[1])
	}
	return ""
}

func looksLikeRecruiter(addr string) bool {
	lower := strings.ToLower(addr)
	for _, frag := range nonRecruiterFragments {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	return true
}

// forwarderAddress is the user who forwarded the message. Domain forwarders
// rewrite it with SRS (SRS0=hash=tt=domain=user@relay), which is undone here.
func forwarderAddress(envelopeFrom, content string) string {
	addr := envelopeFrom
	if strings.Contains(addr, "SRS0=") {
		if m := srsAddress.FindStringSubmatch(addr); m != nil {
			addr = m[2] + "@" + m[1]
		}
	}
	if !strings.Contains(addr, "@") {
		if m := forwardedTo.FindStringSubmatch(content); m != nil {
			addr = m[1]
		}
	}
	return stripAngles(addr)
}

// receiverAddress is the tracking address the user forwarded to. When the
// message arrived through the relay's own address, the tracking address is
// recovered from the forwarding headers.
func receiverAddress(req *dtos.InboundEmailRequest, domain string) string {
	receiver := req.Envelope.To
	if !strings.Contains(receiver, "@cloudmailin.net") {
		return receiver
	}
	for _, h := range []string{"X-Forwarded-To", "Delivered-To", "To"} {
		v := req.Headers.Get(h)
		if domain != "" && strings.Contains(v, "@"+domain) {
			return stripAngles(v)
		}
	}
	return receiver
}

func sentDate(content string, headers dtos.MailHeaders, now time.Time) string {
	if m := forwardedDate.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := anyDate.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	if d := headers.Get("Date"); d != "" {
		return d
	}
	return now.UTC().Format(time.RFC3339)
}

func originalSubject(content string, headers dtos.MailHeaders) string {
	if m := forwardedSubject.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(fwdPrefix.ReplaceAllString(headers.Get("Subject"), ""))
}

// originalBody keeps the forwarded body and drops signatures, nested
// forwards and quoted replies. Content without a forwarding block is kept
// whole.
func originalBody(content string) string {
	m := forwardedBody.FindStringSubmatch(content)
	if m == nil {
		return content
	}
	body := strings.TrimSpace(m[1])
	for _, re := range bodyCutMarkers {
		if loc := re.FindStringIndex(body); loc != nil {
			body = strings.TrimSpace(body[:loc[0]])
		}
	}
	return body
}

func stripAngles(s string) string {
	return strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(s))
}
