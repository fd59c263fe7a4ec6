package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExtractionService wraps the hosted vision-language extraction API that
// turns a business card photo or free text into structured lead fields.
// The model runs on the provider side; we only ship the input and map the
// answer onto a lead draft.
type ExtractionService interface {
	ExtractLead(ctx context.Context, input ExtractionInput) (*CreateLeadRequest, error)
}

type ExtractionInput struct {
	// ImageURL points at an already-hosted image; Text is raw pasted text.
	// Exactly one should be set.
	ImageURL string `json:"image_url,omitempty"`
	Text     string `json:"text,omitempty"`
}

type extractionResponse struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes"`
}

type extractionService struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func NewExtractionService(apiKey, baseURL, model string) ExtractionService {
	return &extractionService{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *extractionService) ExtractLead(ctx context.Context, input ExtractionInput) (*CreateLeadRequest, error) {
	if input.ImageURL == "" && input.Text == "" {
		return nil, fmt.Errorf("an image url or a text block is required")
	}

	payload := map[string]any{
		"model": s.model,
		"input": input,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call extraction api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("extraction api returned %d: %s", resp.StatusCode, string(data))
	}

	extracted := &extractionResponse{}
	if err := json.NewDecoder(resp.Body).Decode(extracted); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	if extracted.Name == "" {
		return nil, fmt.Errorf("extraction did not find a contact name")
	}

	draft := &CreateLeadRequest{Name: extracted.Name}
	if extracted.Company != "" {
		draft.Company = &extracted.Company
	}
	if extracted.Email != "" {
		draft.Email = &extracted.Email
	}
	if extracted.Phone != "" {
		draft.Phone = &extracted.Phone
	}
	if extracted.Notes != "" {
		draft.Notes = &extracted.Notes
	}
	return draft, nil
}
