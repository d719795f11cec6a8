package core

import (
	"time"

	"scrapp.io/client/internal/category"
	"scrapp.io/client/internal/utils"
)

type Post struct {
	ID            int64         `json:"id"` // server-assigned
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Category      category.Slug `json:"category"`
	CategoryLabel string        `json:"category_label"`
	Author        int64         `json:"author,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// PostCollection is every page drained for one filter, in the order the
// server sent them. It is never merged or de-duplicated.
type PostCollection struct {
	Filter category.Slug
	Posts  []Post
}

type NewPost struct {
	Title    string        `json:"title"`
	Content  string        `json:"content"`
	Category category.Slug `json:"category"`
}

type LabelProb = utils.LabelProb

// ClassificationResult is the verdict for one image. Optional fields are nil
// when the deployment does not return them.
type ClassificationResult struct {
	Label        string             `json:"label"`
	Confidence   *float64           `json:"confidence,omitempty"`
	Probs        map[string]float64 `json:"probs,omitempty"`
	Instructions *string            `json:"instructions,omitempty"`
	TopK         []LabelProb        `json:"topK,omitempty"`
	Message      *string            `json:"message,omitempty"`
}

// SubjectInstructions returns the instructions or "" when absent.
func (r *ClassificationResult) SubjectInstructions() string {
	if r == nil || r.Instructions == nil {
		return ""
	}
	return *r.Instructions
}

// Ranked returns up to k label probabilities, highest first. The server's own
// topK list is preferred when present; otherwise probs is ranked locally.
func (r *ClassificationResult) Ranked(k int) []LabelProb {
	if r == nil {
		return nil
	}
	if len(r.TopK) > 0 {
		if k > 0 && len(r.TopK) > k {
			return r.TopK[:k]
		}
		return r.TopK
	}
	return utils.TopK(r.Probs, k)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
