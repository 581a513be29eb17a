package domain

import (
	"strings"
	"time"
)

// Issue is a single published newsletter content item.
// Issues are append-only: once created they are never updated or deleted,
// and delivery tasks reference them by ID only.
type Issue struct {
	ID          string    `json:"issue_id"`
	Title       string    `json:"title"`
	TextContent string    `json:"text_content"`
	HTMLContent string    `json:"html_content"`
	PublishedAt time.Time `json:"published_at"`
}

// PublishIssueRequest is the inbound payload for publishing a new issue.
type PublishIssueRequest struct {
	Title       string `json:"title"`
	TextContent string `json:"text_content"`
	HTMLContent string `json:"html_content"`
}

func (r *PublishIssueRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	if strings.TrimSpace(r.TextContent) == "" {
		return ErrEmptyTextContent
	}
	if strings.TrimSpace(r.HTMLContent) == "" {
		return ErrEmptyHTMLContent
	}
	return nil
}
