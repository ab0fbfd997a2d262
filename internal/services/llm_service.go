package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/justsurfingit/jobsync/internal/config"
)

// Extraction is what the model read out of one email. Fields it could not
// find are empty.
type Extraction struct {
	Company      string `json:"company"`
	JobTitle     string `json:"job_title"`
	CurrentStage string `json:"current_stage"`
	Salary       string `json:"salary"`
	Location     string `json:"location"`
	Contact      string `json:"contact"`
	EmailSummary string `json:"email_summary"`
	Notes        string `json:"notes"`
}

// Extractor turns a parsed email into job fields.
type Extractor interface {
	ExtractEmail(ctx context.Context, email ParsedEmail) (*Extraction, error)
}

var ErrNoJSON = errors.New("no JSON found in model response")

// maxPromptContent caps the email body sent to the model.
const maxPromptContent = 20000

const emailExtractionPrompt = `Analyze this job application email and extract structured information.

EMAIL DETAILS:
From: %s
Subject: %s
Date: %s
Content: %s

Extract the following information (return null if not found):
1. Company name
2. Job title/position
3. Current stage (one of: applied, screening, interview1, interview2, interview3, interview4, interview5, interview6, offer, rejected)
4. Salary range (if mentioned)
5. Location (if mentioned)
6. Recruiter/contact name or email (if mentioned)
7. Brief summary of this email (1-2 sentences)
8. Any important notes or action items

Respond ONLY with valid JSON in this exact format (use JSON null, not the string "null"):
{
  "company": "Company Name",
  "job_title": "Job Title",
  "current_stage": "screening",
  "salary": null,
  "location": null,
  "contact": "email@example.com",
  "email_summary": "Brief summary here",
  "notes": null
}`

type LLMService struct {
	Client llms.Model
}

var _ Extractor = (*LLMService)(nil)

// NewLLMService creates the Gemini client once; it is reused for every email.
func NewLLMService(ctx context.Context, cfg config.AIConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &LLMService{Client: llm}, nil
}

// ExtractEmail asks the model for the job fields of one email.
func (s *LLMService) ExtractEmail(ctx context.Context, email ParsedEmail) (*Extraction, error) {
	content := email.Content
	if len(content) > maxPromptContent {
		content = content[:maxPromptContent]
	}
	prompt := fmt.Sprintf(emailExtractionPrompt, email.OriginalSender, email.Subject, email.SentDate, content)

	resp, err := llms.GenerateFromSinglePrompt(ctx, s.Client, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return ParseExtraction(resp)
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseExtraction reads the JSON object out of a model reply, which may be
// wrapped in markdown fences or prose.
func ParseExtraction(text string) (*Extraction, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return nil, ErrNoJSON
	}
	var out Extraction
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return &out, nil
}
