package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGenerator struct {
	err error
}

func (s staticGenerator) StepImage(_ context.Context, p StepPrompt) (*Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &Image{MIMEType: "image/jpeg", Data: []byte(p.StepLabel)}, nil
}

func (s staticGenerator) FinishImage(_ context.Context, title string) (*Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &Image{MIMEType: "image/png", Data: []byte(title)}, nil
}

func TestArchiveWritesImages(t *testing.T) {
	root := t.TempDir()
	a := NewArchive(staticGenerator{}, root, testLogger())

	img, err := a.StepImage(context.Background(), StepPrompt{RecipeTitle: "Tomato Soup", StepLabel: "Roast Tomatoes!"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tomato-soup", "step-roast-tomatoes.jpg"), img.Path)

	data, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "Roast Tomatoes!", string(data))

	fin, err := a.FinishImage(context.Background(), "Tomato Soup")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tomato-soup", "finish.png"), fin.Path)
}

func TestArchivePassesErrorsThrough(t *testing.T) {
	a := NewArchive(staticGenerator{err: errors.New("nope")}, t.TempDir(), testLogger())
	_, err := a.StepImage(context.Background(), StepPrompt{StepLabel: "x"})
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Roast Tomatoes!": "roast-tomatoes",
		"  Boil  water ":  "boil-water",
		"Crème brûlée":    "cr-me-br-l-e",
		"":                "untitled",
		"!!!":             "untitled",
	}
	for in, want := range tests {
		assert.Equal(t, want, slug(in), in)
	}
}
