package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadFile decodes path into v. ".json" and ".jsonc" files may carry comments and trailing
// commas; ".yaml" and ".yml" files are decoded with yaml.v3.
func LoadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), v); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported catalog file extension %q", ext)
	}
	return nil
}

// LoadDefaults loads the course list and study plan from dir. A missing or unreadable file
// leaves that half empty and the returned store reports Available() == false.
func LoadDefaults(dir, coursesFile, structureFile string) *MemoryStore {
	var courses []Course
	if err := LoadFile(filepath.Join(dir, coursesFile), &courses); err != nil {
		log.Printf("[catalog] course list unavailable: %v", err)
		courses = nil
	}

	var structure *Structure
	var plan Structure
	if err := LoadFile(filepath.Join(dir, structureFile), &plan); err != nil {
		log.Printf("[catalog] study plan unavailable: %v", err)
	} else {
		structure = &plan
	}

	store := NewMemoryStore(courses, structure)
	if store.Available() {
		log.Printf("[catalog] loaded %d courses, %d study years from %s", len(courses), len(plan.Years), dir)
	}
	return store
}
