package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		html   string
		values map[string]any
		want   string
	}{
		{
			name:   "tight and spaced markers",
			html:   "<h1>{{name}}</h1><p>{{  name  }}</p>",
			values: map[string]any{"name": "Ayesha Khan"},
			want:   "<h1>Ayesha Khan</h1><p>Ayesha Khan</p>",
		},
		{
			name:   "unknown marker kept verbatim",
			html:   "{{ name }} / {{ signature }}",
			values: map[string]any{"name": "A"},
			want:   "A / {{ signature }}",
		},
		{
			name:   "nil value becomes empty",
			html:   "[{{ venue }}]",
			values: map[string]any{"venue": nil},
			want:   "[]",
		},
		{
			name:   "non-string values use string form",
			html:   "{{ fee }} {{ paid }}",
			values: map[string]any{"fee": 12.5, "paid": true},
			want:   "12.5 true",
		},
		{
			name:   "replacement is not re-scanned",
			html:   "{{ name }}",
			values: map[string]any{"name": "{{ token }}", "token": "secret"},
			want:   "{{ token }}",
		},
		{
			name:   "key that prefixes another name does not match it",
			html:   "{{ name }} {{ name_full }} {{ event }} {{ event_title }}",
			values: map[string]any{"name": "N", "event": "E"},
			want:   "N {{ name_full }} E {{ event_title }}",
		},
		{
			name:   "non-ASCII and punctuated keys",
			html:   "{{ nom_élève }} / {{名前}} / {{ fee($) }}",
			values: map[string]any{"nom_élève": "Zoë", "名前": "Ken", "fee($)": 10},
			want:   "Zoë / Ken / 10",
		},
		{
			name:   "names with inner spaces are not markers",
			html:   "{{ first name }}",
			values: map[string]any{"first name": "x", "first": "y"},
			want:   "{{ first name }}",
		},
		{
			name:   "empty values map returns input",
			html:   "{{ name }}",
			values: nil,
			want:   "{{ name }}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Placeholders(tt.html, tt.values))
		})
	}
}

func TestPlaceholders_OrderIndependent(t *testing.T) {
	t.Parallel()

	html := "{{a}}-{{b}}-{{ab}}"
	v1 := map[string]any{"a": "1", "b": "2", "ab": "3"}
	v2 := map[string]any{"ab": "3", "b": "2", "a": "1"}
	for i := 0; i < 20; i++ {
		require.Equal(t, "1-2-3", Placeholders(html, v1))
		require.Equal(t, "1-2-3", Placeholders(html, v2))
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	got := Names("{{ name }} {{token}} {{ name }} {{ verification_url }}")
	require.Equal(t, []string{"name", "token", "verification_url"}, got)
}
