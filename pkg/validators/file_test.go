package validators

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest prefix mimetype recognises as an mp4 container
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}

func TestSniffAcceptsVideo(t *testing.T) {
	r := bytes.NewReader(mp4Header)

	mime, err := VideoValidator{}.Sniff(r)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", mime)

	// rewound for the caller
	pos, _ := r.Seek(0, 1)
	assert.Zero(t, pos)
}

func TestSniffRejectsText(t *testing.T) {
	_, err := VideoValidator{}.Sniff(bytes.NewReader([]byte("hello, this is not a video")))
	assert.ErrorIs(t, err, ErrFileTypeUnsupported)
}

func TestSniffAllowedTypes(t *testing.T) {
	v := VideoValidator{AllowedTypes: []string{"text/plain"}}

	mime, err := v.Sniff(bytes.NewReader([]byte("plain text")))
	require.NoError(t, err)
	assert.Contains(t, mime, "text/plain")
}
