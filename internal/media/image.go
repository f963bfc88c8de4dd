// Package media produces and caches the illustrative images shown next to
// each cook-along step and the finished dish.
package media

import (
	"context"
	"strings"
)

// Image is one generated picture.
type Image struct {
	MIMEType string
	Data     []byte
	Path     string // set when the image was archived to disk
}

// Ext returns a file extension matching the MIME type.
func (i *Image) Ext() string {
	switch strings.ToLower(i.MIMEType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// StepPrompt identifies the picture wanted for one step.
type StepPrompt struct {
	RecipeTitle string
	StepLabel   string
	Instruction string
}

// Generator turns prompts into images. Implementations must honour ctx.
type Generator interface {
	StepImage(ctx context.Context, p StepPrompt) (*Image, error)
	FinishImage(ctx context.Context, recipeTitle string) (*Image, error)
}

// Status is the lifecycle state of one cache slot.
type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusUnavailable
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Entry is the value of one cache slot. Image is set only when Resolved.
type Entry struct {
	Status Status
	Image  *Image
}
