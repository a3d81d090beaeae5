package modlist

import (
	"regexp"
	"strings"
)

var (
	sectionHeaderRegex = regexp.MustCompile(`^\[([^\]]*)\]$`)
	separatorRunRegex  = regexp.MustCompile(`[\s_]+`)
	// A trailing comment starts at the first hash that follows whitespace.
	trailingCommentRegex = regexp.MustCompile(`\s+#.*$`)
)

// Parse normalizes a raw user list. It never fails: unusable lines are
// skipped, unknown suffixes are kept as ExtUnknown, and duplicate names
// collapse to the first occurrence. The input buffer is never modified.
func Parse(raw string) List {
	var list List
	seen := make(map[string]int)
	sectionEnabled := true

	for _, line := range strings.Split(raw, "\n") {
		original := strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(original)
		if trimmed == "" {
			continue
		}

		if match := sectionHeaderRegex.FindStringSubmatch(trimmed); match != nil {
			switch strings.ToLower(strings.TrimSpace(match[1])) {
			case "enabled":
				sectionEnabled = true
			case "disabled":
				sectionEnabled = false
			}
			// Unrecognized headers are ignored without changing state.
			continue
		}

		token, lineDisabled, ok := splitMarker(trimmed)
		if !ok {
			continue
		}

		name := Canonicalize(token)
		if name == "" {
			continue
		}

		if first, dup := seen[name]; dup {
			list.Duplicates = append(list.Duplicates, Duplicate{
				Name:   name,
				First:  first,
				Second: len(list.Records),
			})
			continue
		}

		position := len(list.Records)
		seen[name] = position
		list.Records = append(list.Records, Record{
			Name:     name,
			Display:  token,
			Ext:      classify(name),
			Enabled:  sectionEnabled && !lineDisabled,
			Position: position,
			Raw:      original,
		})
	}

	return list
}

// splitMarker strips an optional leading enable/disable marker and any
// trailing comment from a line. It returns the remaining filename token and
// whether the marker disables the entry. Lines that reduce to nothing report
// ok=false.
//
// A leading hash doubles as the comment character, so it only counts as a
// disable marker when the rest of the line carries a recognized mod suffix;
// otherwise the whole line is treated as a comment.
func splitMarker(line string) (token string, disabled bool, ok bool) {
	rest := line
	switch line[0] {
	case '-', '*':
		disabled = true
		rest = strings.TrimSpace(line[1:])
	case '+':
		rest = strings.TrimSpace(line[1:])
	case '#':
		rest = strings.TrimSpace(line[1:])
		if classify(Canonicalize(stripTrailingComment(rest))) == ExtUnknown {
			return "", false, false
		}
		disabled = true
	}

	rest = stripTrailingComment(rest)
	if rest == "" {
		return "", false, false
	}
	return rest, disabled, true
}

func stripTrailingComment(s string) string {
	return strings.TrimSpace(trailingCommentRegex.ReplaceAllString(s, ""))
}

// Canonicalize produces the case-insensitive match key for a mod name:
// lowercase with runs of whitespace and underscores collapsed to one space.
func Canonicalize(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	return separatorRunRegex.ReplaceAllString(lowered, " ")
}

func classify(name string) Ext {
	switch {
	case strings.HasSuffix(name, ".esm"):
		return ExtMaster
	case strings.HasSuffix(name, ".esp"):
		return ExtPlugin
	case strings.HasSuffix(name, ".esl"):
		return ExtLight
	case strings.HasSuffix(name, ".bsa"), strings.HasSuffix(name, ".ba2"):
		return ExtArchive
	default:
		return ExtUnknown
	}
}
