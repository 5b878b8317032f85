package kb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"qa-explainer-video/internal/domain/model"
)

// LoadSections reads markdown documentation from a file or directory and
// splits it into sections on second-level headings. Section IDs are
// "<file>::<heading>" so re-seeding maps onto the same rows.
func LoadSections(source string) ([]model.KBSection, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(source)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			files = append(files, filepath.Join(source, e.Name()))
		}
	} else {
		files = []string{source}
	}

	var out []model.KBSection
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, splitSections(filepath.Base(f), string(b))...)
	}
	return out, nil
}

func splitSections(file, content string) []model.KBSection {
	var sections []model.KBSection
	add := func(heading string, lines []string) {
		body := strings.TrimSpace(strings.Join(lines, "\n"))
		if body == "" {
			return
		}
		sections = append(sections, model.KBSection{
			ID:   fmt.Sprintf("%s::%s", file, heading),
			Body: body,
		})
	}

	heading := "intro"
	var buf []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			add(heading, buf)
			heading = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			buf = buf[:0]
			buf = append(buf, line)
			continue
		}
		buf = append(buf, line)
	}
	add(heading, buf)
	return sections
}
