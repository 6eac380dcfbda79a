package schema

import (
	"strings"

	"github.com/mycelian/contacts-service/internal/model"
)

// SplitName derives first and last names from a display name. It accepts
// "Last, First ..." and "First Last ..."; when only one part can be found it
// is returned as the first name.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, model.UnnamedContact) {
		return "", ""
	}
	if before, after, ok := strings.Cut(name, ","); ok {
		rest := strings.Fields(after)
		before = strings.TrimSpace(before)
		if len(rest) == 0 {
			return before, ""
		}
		return rest[0], before
	}
	parts := strings.Fields(name)
	return parts[0], strings.Join(parts[1:], " ")
}
