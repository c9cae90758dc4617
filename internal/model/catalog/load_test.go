package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFileJSONC(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "courses.jsonc", `[
		// core units
		{"title": "Computer Networks", "course_code": "COSC1111", "course_type": "core",},
	]`)

	var courses []Course
	require.NoError(t, LoadFile(filepath.Join(dir, "courses.jsonc"), &courses))
	require.Len(t, courses, 1)
	assert.Equal(t, "COSC1111", courses[0].Code)
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "courses.yaml", `
- title: Ethical Hacking
  course_code: COSC2537
  course_type: minor
  minor_track: [Offensive Security]
`)

	var courses []Course
	require.NoError(t, LoadFile(filepath.Join(dir, "courses.yaml"), &courses))
	require.Len(t, courses, 1)
	assert.Equal(t, []string{"Offensive Security"}, courses[0].MinorTrack)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "courses.toml", `title = "x"`)
	writeFile(t, dir, "broken.json", `[{`)

	var courses []Course
	assert.Error(t, LoadFile(filepath.Join(dir, "courses.toml"), &courses))
	assert.Error(t, LoadFile(filepath.Join(dir, "broken.json"), &courses))
	assert.Error(t, LoadFile(filepath.Join(dir, "missing.json"), &courses))
}

func TestLoadDefaultsFromRepositoryData(t *testing.T) {
	store := LoadDefaults(filepath.Join("..", "..", "..", "data"), "courses_data.json", "cyber_security_program_structure.json")

	require.True(t, store.Available())
	structure, ok := store.Structure()
	require.True(t, ok)
	assert.Equal(t, "first_year", structure.Years[0].Key)

	course, ok := store.FindByTitle("Security in Computing and Information Technology")
	require.True(t, ok)
	assert.Equal(t, "COSC2536", course.Code)
}

func TestLoadDefaultsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "courses_data.json", `[{"title": "Intro", "course_code": "INTE1182"}]`)

	store := LoadDefaults(dir, "courses_data.json", "cyber_security_program_structure.json")
	assert.False(t, store.Available())
	assert.Len(t, store.Courses(), 1)

	_, ok := store.Structure()
	assert.False(t, ok)
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore([]Course{{Title: "A", Code: "1"}, {Title: "A", Code: "2"}}, &Structure{})

	course, ok := store.FindByTitle("A")
	require.True(t, ok)
	assert.Equal(t, "2", course.Code)

	courses := store.Courses()
	courses[0].Title = "changed"
	assert.Equal(t, "A", store.Courses()[0].Title)

	_, ok = store.FindByTitle("missing")
	assert.False(t, ok)
}
