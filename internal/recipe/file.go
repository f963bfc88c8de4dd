package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// fileRecipe is the on-disk YAML shape. A step's time may be given either
// as whole seconds or as a Go duration string ("4m30s").
type fileRecipe struct {
	ID          string              `yaml:"id"`
	Title       string              `yaml:"title"`
	Description string              `yaml:"description"`
	Servings    int                 `yaml:"servings"`
	Tags        []string            `yaml:"tags"`
	Ingredients []domain.Ingredient `yaml:"ingredients"`
	Steps       []fileStep          `yaml:"steps"`
	Closing     string              `yaml:"closing"`
}

type fileStep struct {
	Label       string `yaml:"label"`
	Instruction string `yaml:"instruction"`
	Seconds     int    `yaml:"seconds"`
	Duration    string `yaml:"duration"`
	Hint        string `yaml:"hint"`
}

// Parse decodes and validates one YAML recipe.
func Parse(data []byte) (*domain.Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fr fileRecipe
	if err := dec.Decode(&fr); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecipe, err)
	}

	r := &domain.Recipe{
		ID:          fr.ID,
		Title:       strings.TrimSpace(fr.Title),
		Description: fr.Description,
		Servings:    fr.Servings,
		Tags:        fr.Tags,
		Ingredients: fr.Ingredients,
		Closing:     fr.Closing,
	}
	for i, fs := range fr.Steps {
		secs := fs.Seconds
		if fs.Duration != "" {
			d, err := time.ParseDuration(fs.Duration)
			if err != nil {
				return nil, fmt.Errorf("%w: step %d duration %q: %v", domain.ErrMalformedRecipe, i+1, fs.Duration, err)
			}
			secs = int(d.Round(time.Second) / time.Second)
		}
		label := fs.Label
		if label == "" {
			label = fmt.Sprintf("Step %d", i+1)
		}
		r.Steps = append(r.Steps, domain.Step{
			Label:           label,
			Instruction:     fs.Instruction,
			DurationSeconds: secs,
			Hint:            fs.Hint,
		})
	}
	if r.ID == "" {
		r.ID = Slug(r.Title)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFile reads one YAML recipe from path.
func LoadFile(path string) (*domain.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return r, nil
}

// LoadDir adds every *.yaml and *.yml recipe in dir to src. Broken files
// are logged and skipped. A missing directory is not an error.
func LoadDir(dir string, src *MemorySource, log *logger.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("recipe dir %s does not exist, skipping", dir)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading recipe dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	added := 0
	for _, name := range names {
		r, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("skipping recipe %s: %v", name, err)
			continue
		}
		if err := src.Add(r); err != nil {
			log.Warn("skipping recipe %s: %v", name, err)
			continue
		}
		added++
	}
	log.Info("loaded %d recipe(s) from %s", added, dir)
	return added, nil
}
