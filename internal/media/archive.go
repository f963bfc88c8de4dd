package media

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface check.
var _ Generator = (*Archive)(nil)

// Archive decorates a Generator and writes every image it produces under
// root/<recipe>/, filling Image.Path. Write failures are logged; the image
// is still returned.
type Archive struct {
	next Generator
	root string
	log  *logger.Logger
}

// NewArchive creates an archiving decorator.
func NewArchive(next Generator, root string, log *logger.Logger) *Archive {
	return &Archive{next: next, root: root, log: log}
}

// StepImage delegates and archives the result as step-<label>.
func (a *Archive) StepImage(ctx context.Context, p StepPrompt) (*Image, error) {
	img, err := a.next.StepImage(ctx, p)
	if err != nil || img == nil {
		return img, err
	}
	a.store(img, slug(p.RecipeTitle), "step-"+slug(p.StepLabel))
	return img, nil
}

// FinishImage delegates and archives the result as finish.
func (a *Archive) FinishImage(ctx context.Context, recipeTitle string) (*Image, error) {
	img, err := a.next.FinishImage(ctx, recipeTitle)
	if err != nil || img == nil {
		return img, err
	}
	a.store(img, slug(recipeTitle), "finish")
	return img, nil
}

func (a *Archive) store(img *Image, recipe, name string) {
	dir := filepath.Join(a.root, recipe)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.log.Warn("archive: create %s: %v", dir, err)
		return
	}

	path := filepath.Join(dir, name+img.Ext())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, img.Data, 0o644); err != nil {
		a.log.Warn("archive: write %s: %v", tmp, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		a.log.Warn("archive: rename %s: %v", path, err)
		_ = os.Remove(tmp)
		return
	}
	img.Path = path
	a.log.Debug("archive: saved %s (%d bytes)", path, len(img.Data))
}

// slug reduces a label to a safe file name fragment.
func slug(s string) string {
	out := make([]rune, 0, len(s))
	dash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
			dash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			dash = false
		default:
			if !dash && len(out) > 0 {
				out = append(out, '-')
				dash = true
			}
		}
	}
	if len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return "untitled"
	}
	return string(out)
}
