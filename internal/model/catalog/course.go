package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Course 是课程目录中的一门课程。
type Course struct {
	Title       string   `json:"title" yaml:"title"`
	Code        string   `json:"course_code" yaml:"course_code"`
	Description string   `json:"description" yaml:"description"`
	Type        string   `json:"course_type" yaml:"course_type"`
	MinorTrack  []string `json:"minor_track,omitempty" yaml:"minor_track,omitempty"`
}

// YearPlan lists the recommended course titles for one study year.
type YearPlan struct {
	Key    string   `json:"key"`
	Titles []string `json:"titles"`
}

// Label turns a year key such as "first_year" into "First Year".
func (y YearPlan) Label() string {
	return YearLabel(y.Key)
}

// Structure is the recommended study plan. Years keep the order of the source document.
type Structure struct {
	Years []YearPlan
}

const recommendedKey = "recommended_courses"

// UnmarshalJSON decodes {"recommended_courses": {"first_year": [...], ...}} keeping key order.
func (s *Structure) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Years = nil
	plan, ok := raw[recommendedKey]
	if !ok || bytes.Equal(bytes.TrimSpace(plan), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(plan))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%s: expected an object", recommendedKey)
	}

	years := make([]YearPlan, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var titles []string
		if err := dec.Decode(&titles); err != nil {
			return fmt.Errorf("%s.%s: %w", recommendedKey, key, err)
		}
		years = append(years, YearPlan{Key: key, Titles: titles})
	}

	s.Years = years
	return nil
}

// MarshalJSON writes the same shape UnmarshalJSON reads, in Years order.
func (s Structure) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"` + recommendedKey + `":{`)
	for i, year := range s.Years {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(year.Key)
		if err != nil {
			return nil, err
		}
		titles := year.Titles
		if titles == nil {
			titles = []string{}
		}
		value, err := json.Marshal(titles)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes the YAML form of the study plan, keeping mapping order.
func (s *Structure) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: study plan must be a mapping", value.Line)
	}

	s.Years = nil
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value != recommendedKey {
			continue
		}

		plan := value.Content[i+1]
		if plan.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: %s must be a mapping", plan.Line, recommendedKey)
		}

		years := make([]YearPlan, 0, len(plan.Content)/2)
		for j := 0; j+1 < len(plan.Content); j += 2 {
			var titles []string
			if err := plan.Content[j+1].Decode(&titles); err != nil {
				return fmt.Errorf("%s.%s: %w", recommendedKey, plan.Content[j].Value, err)
			}
			years = append(years, YearPlan{Key: plan.Content[j].Value, Titles: titles})
		}
		s.Years = years
	}
	return nil
}

// YearLabel title-cases a snake_case key: "first_year" -> "First Year".
func YearLabel(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
