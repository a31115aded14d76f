package trailer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghostflow/ghostflow/internal/trailer"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    []trailer.Trailer
	}{
		{
			name:    "simple trailer",
			message: "Some simple content.\n\nToken: value",
			want:    []trailer.Trailer{{Token: "Token", Value: "value"}},
		},
		{
			name:    "trailing whitespace line breaks the tail",
			message: "Some simple content.\n\nToken: value\n            ",
			want:    nil,
		},
		{
			name:    "non-matching line drops earlier trailers",
			message: "Some simple content.\n\nMissed: value\n\nToken: value",
			want:    []trailer.Trailer{{Token: "Token", Value: "value"}},
		},
		{
			name:    "no trailers",
			message: "Just a message with no trailers at all.",
			want:    nil,
		},
		{
			name:    "multiple trailers preserve order",
			message: "Body.\n\nSigned-off-by: Alice\nAcked-by: Bob",
			want: []trailer.Trailer{
				{Token: "Signed-off-by", Value: "Alice"},
				{Token: "Acked-by", Value: "Bob"},
			},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			got := trailer.Extract(c.message)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestShortcutTrailer(t *testing.T) {
	token, ok := trailer.ShortcutTrailer("+1")
	assert.True(t, ok)
	assert.Equal(t, "Acked-by", token)

	token, ok = trailer.ShortcutTrailer("-1")
	assert.True(t, ok)
	assert.Equal(t, "Rejected-by", token)

	_, ok = trailer.ShortcutTrailer("not a shortcut")
	assert.False(t, ok)
}

func TestAwardTrailer(t *testing.T) {
	token, ok := trailer.AwardTrailer("thumbsup")
	assert.True(t, ok)
	assert.Equal(t, "Acked-by", token)

	token, ok = trailer.AwardTrailer("thumbsdown_tone3")
	assert.True(t, ok)
	assert.Equal(t, "Rejected-by", token)

	_, ok = trailer.AwardTrailer("eyes")
	assert.False(t, ok)
}
