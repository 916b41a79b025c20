package impression

import (
	"regexp"
	"strings"
)

const (
	FieldAddress      = "address"
	FieldRelationship = "relationship"
	FieldImpression   = "impression"
	FieldAttitude     = "attitude"
	FieldInterest     = "interest"
)

// StatusFields lists the impression fields in wire order.
var StatusFields = []string{FieldAddress, FieldRelationship, FieldImpression, FieldAttitude, FieldInterest}

var markerRe = regexp.MustCompile(`(?i)(?:^|[,，\s])(address|relationship|impression|attitude|interest)\s*[:：]`)

// ParseStatusBlock removes the first status block from text and returns the
// cleaned text with the fields found inside it. Blocks are outermost bracket
// spans, so values may carry brackets of their own. A bracket that carries no
// field marker is still removed when no better candidate exists.
func ParseStatusBlock(text string) (string, map[string]string) {
	fields := map[string]string{}
	blocks := bracketSpans(text)
	if len(blocks) == 0 {
		return text, fields
	}
	chosen := blocks[0]
	for _, b := range blocks {
		if markerRe.MatchString(text[b[0]+1 : b[1]-1]) {
			chosen = b
			break
		}
	}
	content := text[chosen[0]+1 : chosen[1]-1]
	cleaned := strings.TrimSpace(text[:chosen[0]] + text[chosen[1]:])

	markers := markerRe.FindAllStringSubmatchIndex(content, -1)
	for i, m := range markers {
		key := strings.ToLower(content[m[2]:m[3]])
		end := len(content)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = trimValue(content[m[1]:end])
	}
	return cleaned, fields
}

// bracketSpans returns the outermost [start, end) spans of bracketed text. An
// opening bracket that is never balanced extends to the last closing bracket.
func bracketSpans(text string) [][2]int {
	var spans [][2]int
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		end := matchBracket(text, i)
		if end < 0 {
			break
		}
		spans = append(spans, [2]int{i, end + 1})
		i = end
	}
	return spans
}

func matchBracket(text string, open int) int {
	depth := 0
	for j := open; j < len(text); j++ {
		switch text[j] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	if last := strings.LastIndexByte(text[open:], ']'); last > 0 {
		return open + last
	}
	return -1
}

func trimValue(v string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(v), ",， \t\r\n"))
}

// ApplyFields merges non-empty status fields into rec and reports which
// fields changed.
func ApplyFields(rec *UserRecord, fields map[string]string) []string {
	var changed []string
	for _, name := range StatusFields {
		v, ok := fields[name]
		if !ok || v == "" {
			continue
		}
		dst := fieldPtr(rec, name)
		if *dst == v {
			continue
		}
		*dst = v
		changed = append(changed, name)
	}
	return changed
}

func fieldPtr(rec *UserRecord, name string) *string {
	switch name {
	case FieldAddress:
		return &rec.Address
	case FieldRelationship:
		return &rec.Relationship
	case FieldImpression:
		return &rec.Impression
	case FieldAttitude:
		return &rec.Attitude
	case FieldInterest:
		return &rec.Interest
	}
	return nil
}
