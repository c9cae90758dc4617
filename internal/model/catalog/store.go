package catalog

// Store exposes the course catalog to the advisor and HTTP handlers.
type Store interface {
	Courses() []Course
	Structure() (Structure, bool)
	FindByTitle(title string) (Course, bool)
	// Available reports whether both the course list and the study plan were loaded.
	Available() bool
}

// MemoryStore implements Store with data loaded once at startup.
type MemoryStore struct {
	courses   []Course
	structure *Structure
	byTitle   map[string]Course
}

// NewMemoryStore returns a MemoryStore over courses and structure. structure may be nil.
func NewMemoryStore(courses []Course, structure *Structure) *MemoryStore {
	byTitle := make(map[string]Course, len(courses))
	for _, course := range courses {
		// 同名课程以最后一条为准
		byTitle[course.Title] = course
	}

	s := &MemoryStore{
		courses: append([]Course(nil), courses...),
		byTitle: byTitle,
	}
	if structure != nil {
		copied := Structure{Years: append([]YearPlan(nil), structure.Years...)}
		s.structure = &copied
	}
	return s
}

// Courses returns the courses in file order.
func (s *MemoryStore) Courses() []Course {
	return append([]Course(nil), s.courses...)
}

// Structure returns the study plan and whether one was loaded.
func (s *MemoryStore) Structure() (Structure, bool) {
	if s.structure == nil {
		return Structure{}, false
	}
	return Structure{Years: append([]YearPlan(nil), s.structure.Years...)}, true
}

// FindByTitle looks up a course by its exact title.
func (s *MemoryStore) FindByTitle(title string) (Course, bool) {
	course, ok := s.byTitle[title]
	return course, ok
}

// Available implements Store.
func (s *MemoryStore) Available() bool {
	return len(s.courses) > 0 && s.structure != nil
}
