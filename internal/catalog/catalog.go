// Package catalog loads the static lesson catalog that progress is keyed against.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"studytrail/internal/models"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// Load reads and validates a YAML catalog file
func Load(path string) (*models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and checks that every identifier is present and unique
func Parse(data []byte) (*models.Catalog, error) {
	var c models.Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks identifier presence and uniqueness across the catalog
func Validate(c *models.Catalog) error {
	lessons := make(map[string]bool)
	topics := make(map[string]bool)

	for _, lesson := range c.Lessons {
		if lesson.ID == "" {
			return fmt.Errorf("%w: lesson without id", ErrInvalidCatalog)
		}
		if lessons[lesson.ID] {
			return fmt.Errorf("%w: duplicate lesson %q", ErrInvalidCatalog, lesson.ID)
		}
		lessons[lesson.ID] = true

		for _, topic := range lesson.Topics {
			if topic.ID == "" {
				return fmt.Errorf("%w: topic without id in lesson %q", ErrInvalidCatalog, lesson.ID)
			}
			if topics[topic.ID] {
				return fmt.Errorf("%w: duplicate topic %q", ErrInvalidCatalog, topic.ID)
			}
			topics[topic.ID] = true

			if topic.Essay.MinCharacters < 0 {
				return fmt.Errorf("%w: topic %q has a negative essay minimum", ErrInvalidCatalog, topic.ID)
			}

			quizzes := make(map[string]bool)
			for _, quiz := range topic.Quizzes {
				if quiz.ID == "" {
					return fmt.Errorf("%w: quiz without id in topic %q", ErrInvalidCatalog, topic.ID)
				}
				if quizzes[quiz.ID] {
					return fmt.Errorf("%w: duplicate quiz %q in topic %q", ErrInvalidCatalog, quiz.ID, topic.ID)
				}
				quizzes[quiz.ID] = true
			}
		}
	}
	return nil
}
