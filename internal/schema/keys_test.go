package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func bagWithKeys(keys ...string) *Bag {
	b := NewBag()
	for _, k := range keys {
		b.Set(k, Property{})
	}
	return b
}

func TestFindPropertyKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		keys       []string
		candidates []string
		want       string
		found      bool
	}{
		{"different case", []string{"Name", "STATUS"}, []string{"Status", "status"}, "STATUS", true},
		{"exact beats case-insensitive", []string{"status", "Status"}, []string{"Status"}, "Status", true},
		{"candidate order for exact", []string{"Title", "Role"}, []string{"Role", "role", "Title"}, "Role", true},
		{"separator variants", []string{"Next-Followup Date"}, []string{"next_followup_date"}, "Next-Followup Date", true},
		{"absent", []string{"Email"}, []string{"Phone", "phone"}, "", false},
		{"empty bag", nil, []string{"Phone"}, "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FindPropertyKey(bagWithKeys(tt.keys...), tt.candidates)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindPropertyKeyNilBag(t *testing.T) {
	t.Parallel()
	_, ok := FindPropertyKey(nil, []string{"Status"})
	assert.False(t, ok)
}
