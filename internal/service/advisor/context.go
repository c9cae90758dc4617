package advisor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/course-advisor/backend/internal/model/catalog"
	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/service/document"
)

// ErrContextUnavailable is returned when the session's context mode has nothing to ground the
// answer on: the catalog failed to load, or no documents were uploaded.
var ErrContextUnavailable = errors.New("context data is unavailable")

const catalogPreamble = "You are a helpful assistant that supports students in selecting courses from the " +
	"Bachelor of Cyber Security program at RMIT (codes BP355/BP356). " +
	"Recommend only from the official course list. Each course is categorized as core, capstone, minor, or elective. " +
	"Use the recommended structure to suggest suitable courses based on study year and interest.\n\n"

const documentPreamble = "You are a course advisor. The following is extracted from official course documents:\n\n"

// CatalogContext renders the study plan and the full course list as the context block.
func CatalogContext(store catalog.Store) (string, error) {
	if store == nil || !store.Available() {
		return "", ErrContextUnavailable
	}

	var b strings.Builder
	b.WriteString(catalogPreamble)

	if structure, ok := store.Structure(); ok && len(structure.Years) > 0 {
		b.WriteString("### Recommended Study Plan by Year:\n")
		for _, year := range structure.Years {
			fmt.Fprintf(&b, "**%s**:\n", year.Label())
			for _, title := range year.Titles {
				if course, found := store.FindByTitle(title); found {
					fmt.Fprintf(&b, "- %s (%s)\n", title, orDefault(course.Code, "N/A"))
				} else {
					fmt.Fprintf(&b, "- %s (not found in course list)\n", title)
				}
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n### All Available Courses:\n")
	courses := store.Courses()
	lines := make([]string, 0, len(courses))
	for _, course := range courses {
		line := fmt.Sprintf("- %s (%s): %s\n  Type: %s",
			orDefault(course.Title, "Untitled"),
			orDefault(course.Code, "N/A"),
			orDefault(course.Description, "No description available."),
			orDefault(course.Type, "N/A"),
		)
		if len(course.MinorTrack) > 0 {
			line += ", Minor: " + course.MinorTrack[0]
		}
		lines = append(lines, line)
	}
	b.WriteString(strings.Join(lines, "\n"))

	return b.String(), nil
}

// DocumentContext prefixes the uploaded document texts with the advisor instruction.
func DocumentContext(docs []chat.Document) (string, error) {
	text := document.Join(docs)
	if text == "" {
		return "", ErrContextUnavailable
	}
	return documentPreamble + text, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
