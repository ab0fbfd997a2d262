package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobsync/internal/dtos"
	"github.com/justsurfingit/jobsync/internal/models"
)

const gmailForward = `FYI

---------- Forwarded message ---------
From: Acme Recruiting <talent@acme.io>
Date: Mon, Mar 3, 2025 at 10:15 AM
Subject: Interview invitation - Backend Engineer
To: <jane@gmail.com>

Hi Jane,

We would like to invite you to a first interview.

Best,
Acme Talent
--
Acme Inc, 1 Infinite Loop

On Mon, Mar 3, 2025 someone wrote:
> earlier thread
`

func inboundRequest(to, from, plain string, headers dtos.MailHeaders) *dtos.InboundEmailRequest {
	req := &dtos.InboundEmailRequest{Plain: plain, Headers: headers}
	req.Envelope.To = to
	req.Envelope.From = from
	return req
}

func TestParseInbound_GmailForward(t *testing.T) {
	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	req := inboundRequest("abc123@track.example.io", "jane@gmail.com", gmailForward,
		dtos.MailHeaders{"Subject": "Fwd: Interview invitation - Backend Engineer"})

	got := ParseInbound(req, testDomain, now)

	assert.Equal(t, "talent@acme.io", got.OriginalSender)
	assert.Equal(t, "jane@gmail.com", got.ForwarderEmail)
	assert.Equal(t, "abc123@track.example.io", got.ReceiverEmail)
	assert.Equal(t, "ABC123", got.TrackingCode)
	assert.Equal(t, "Mon, Mar 3, 2025 at 10:15 AM", got.SentDate)
	assert.Equal(t, "Interview invitation - Backend Engineer", got.Subject)
	assert.Contains(t, got.Content, "first interview")
	assert.NotContains(t, got.Content, "Infinite Loop")
	assert.NotContains(t, got.Content, "earlier thread")
}

func TestParseInbound_SRSForwarder(t *testing.T) {
	req := inboundRequest("ABC123@track.example.io",
		"SRS0=HHH=42=personal.dev=jane@eforward3.registrar-servers.com", gmailForward, nil)

	got := ParseInbound(req, testDomain, time.Now())
	assert.Equal(t, "jane@personal.dev", got.ForwarderEmail)
}

func TestParseInbound_RelayReceiverFromHeaders(t *testing.T) {
	headers := dtos.MailHeaders{
		"to":             "relay@cloudmailin.net",
		"x-forwarded-to": []interface{}{"xyz789@track.example.io", "other@x.io"},
	}
	req := inboundRequest("abcdef@cloudmailin.net", "jane@gmail.com", gmailForward, headers)

	got := ParseInbound(req, testDomain, time.Now())
	assert.Equal(t, "xyz789@track.example.io", got.ReceiverEmail)
	assert.Equal(t, "XYZ789", got.TrackingCode)
}

func TestParseInbound_DirectMessage(t *testing.T) {
	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	body := "Thanks for applying. We will be in touch."
	req := inboundRequest("abc123@track.example.io", "hr@initech.com", body,
		dtos.MailHeaders{"Subject": "FWD: fwd: Your application"})

	got := ParseInbound(req, testDomain, now)

	assert.Equal(t, "hr@initech.com", got.OriginalSender)
	assert.Equal(t, "Your application", got.Subject)
	assert.Equal(t, body, got.Content)
	assert.Equal(t, "2025-03-04T08:00:00Z", got.SentDate)
}

func TestParseInbound_HeaderDateAndHTMLFallback(t *testing.T) {
	req := inboundRequest("abc123@track.example.io", "", "",
		dtos.MailHeaders{"Date": "Tue, 4 Mar 2025 09:00:00 +0000", "From": "Bot <bot@greenhouse.io>"})
	req.HTML = "<p>Application received</p>"

	got := ParseInbound(req, testDomain, time.Now())
	assert.Equal(t, "Tue, 4 Mar 2025 09:00:00 +0000", got.SentDate)
	assert.Equal(t, "bot@greenhouse.io", got.OriginalSender)
	assert.Equal(t, "<p>Application received</p>", got.Content)
}

func TestLooksLikeRecruiter(t *testing.T) {
	assert.True(t, looksLikeRecruiter("jobs@stripe.com"))
	assert.False(t, looksLikeRecruiter("someone@gmail.com"))
	assert.False(t, looksLikeRecruiter("noreply@stripe.com"))
}

func TestParseExtraction(t *testing.T) {
	reply := "Here you go:\n```json\n{\n  \"company\": \"Acme\",\n  \"job_title\": \"Engineer\",\n  \"current_stage\": \"screening\",\n  \"salary\": null\n}\n```"

	ext, err := ParseExtraction(reply)
	require.NoError(t, err)
	assert.Equal(t, "Acme", ext.Company)
	assert.Equal(t, "Engineer", ext.JobTitle)
	assert.Equal(t, "screening", ext.CurrentStage)
	assert.Empty(t, ext.Salary)

	_, err = ParseExtraction("sorry, I cannot help")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseExtraction("{not json}")
	assert.Error(t, err)
}

func TestMatchJob(t *testing.T) {
	into := "j1"
	jobs := []models.Job{
		{ID: "merged", Company: "Acme", JobTitle: "Backend Engineer", MergedInto: &into},
		{ID: "j1", Company: "Acme ", JobTitle: "Senior Backend Engineer"},
		{ID: "j2", Company: "Globex", JobTitle: "Backend Engineer"},
	}

	got := matchJob(jobs, "acme", "backend engineer")
	require.NotNil(t, got)
	assert.Equal(t, "j1", got.ID)

	got = matchJob(jobs, "globex", "senior backend engineer")
	require.NotNil(t, got)
	assert.Equal(t, "j2", got.ID)

	assert.Nil(t, matchJob(jobs, "initech", "backend engineer"))
	assert.Nil(t, matchJob(jobs, "acme", "designer"))
}
