package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"pipeline-acceptance/internal/engagement"
)

const CatalogFileName = "catalog.json"

type catalogCourse struct {
	CourseID string `json:"course_id"`
	Name     string `json:"name"`
	Org      string `json:"org"`
}

type catalogPage struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []catalogCourse `json:"results"`
}

// DefaultCatalog lists the fixture courses.
func DefaultCatalog() []byte {
	courses := []string{engagement.Course1, engagement.Course2, engagement.Course3}
	page := catalogPage{Count: len(courses), Results: make([]catalogCourse, 0, len(courses))}
	for _, c := range courses {
		page.Results = append(page.Results, catalogCourse{CourseID: c, Name: "Demo Course", Org: "edX"})
	}
	b, _ := json.Marshal(page)
	return b
}

// LoadCatalog reads <fixturesDir>/catalog.json, falling back to DefaultCatalog
// when the fixture does not exist.
func LoadCatalog(fixturesDir string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(fixturesDir, CatalogFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultCatalog(), nil
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return nil, errors.New("catalog fixture is not valid json")
	}
	return b, nil
}
