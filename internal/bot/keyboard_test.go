package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrsearch/internal/domain"
)

func TestViewData_RoundTrip(t *testing.T) {
	p := domain.Photo{ID: "53012345678", Title: "ignored", Farm: 66, Server: "65535", Secret: "a1b2c3d4e5"}

	data := viewData(p)
	assert.Equal(t, "v|66|65535|53012345678|a1b2c3d4e5", data)
	assert.LessOrEqual(t, len(data), maxCallbackData)

	got, err := parseViewData(data)
	require.NoError(t, err)
	assert.Equal(t, p.ImageURL(domain.Large), got.ImageURL(domain.Large))
	assert.True(t, p.Equal(got))
}

func TestParseViewData_Malformed(t *testing.T) {
	for _, data := range []string{"", "v|", "v|1|2|3", "f|1|2|3|4", "v|x|2|3|4", "v|1|2|3|4|5"} {
		_, err := parseViewData(data)
		assert.Error(t, err, "data %q", data)
	}
}

func TestButtonTitle(t *testing.T) {
	assert.Equal(t, "(untitled)", buttonTitle(""))
	assert.Equal(t, "(untitled)", buttonTitle("   "))
	assert.Equal(t, "Harbour", buttonTitle(" Harbour "))

	long := strings.Repeat("é", 100)
	got := buttonTitle(long)
	assert.Equal(t, maxButtonTitle, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestResultsKeyboard(t *testing.T) {
	photos := []domain.Photo{
		{ID: "1", Title: "one", Farm: 1, Server: "10", Secret: "a"},
		{ID: "2", Title: "", Farm: 2, Server: "20", Secret: "b"},
		{ID: "3", Title: "three", Farm: 3, Server: "30", Secret: strings.Repeat("s", 80)},
	}
	favorites := map[string]bool{"2": true}

	kb, hidden := resultsKeyboard(photos, func(p domain.Photo) bool { return favorites[p.ID] })
	assert.Zero(t, hidden)
	require.Len(t, kb.InlineKeyboard, 3)

	first := kb.InlineKeyboard[0]
	require.Len(t, first, 2)
	assert.Equal(t, "♡ one", first[0].Text)
	assert.Equal(t, "f|1", first[0].CallbackData)
	assert.Equal(t, "v|1|10|1|a", first[1].CallbackData)

	assert.Equal(t, "♥ (untitled)", kb.InlineKeyboard[1][0].Text)

	// The view button is dropped when the photo does not fit in callback data.
	assert.Len(t, kb.InlineKeyboard[2], 1)
	assert.Equal(t, "f|3", kb.InlineKeyboard[2][0].CallbackData)
}

func TestResultsKeyboard_HidesUnusableIDs(t *testing.T) {
	photos := []domain.Photo{
		{},
		{ID: "1", Title: "kept", Farm: 1, Server: "10", Secret: "a"},
		{ID: strings.Repeat("9", maxCallbackData), Title: "too long"},
	}

	kb, hidden := resultsKeyboard(photos, func(domain.Photo) bool { return false })

	assert.Equal(t, 2, hidden)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "f|1", kb.InlineKeyboard[0][0].CallbackData)
}

func TestSearchTerm(t *testing.T) {
	cases := []struct{ in, want string }{
		{in: "/search kittens", want: "kittens"},
		{in: "/search   two words  ", want: "two words"},
		{in: "/search", want: ""},
		{in: "/search@PhotoBot harbour", want: "harbour"},
		{in: "/search@PhotoBot", want: ""},
		{in: " /search\nmultiline term ", want: "multiline term"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, searchTerm(tc.in), "input %q", tc.in)
	}
}
