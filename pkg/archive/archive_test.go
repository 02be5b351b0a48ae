package archive

import (
	"bytes"
	"errors"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-web-bundle/pkg/types"
)

func sampleEntries() []types.NamedContent {
	return []types.NamedContent{
		{Filename: "example_domain.html", Content: []byte("<html><title>Example Domain</title></html>"), URL: "https://example.com/"},
		{Filename: "example.org_index.html", Content: []byte("<p>caf\xe9</p>"), URL: "https://example.org/"},
		{Filename: "empty.html", Content: []byte{}, URL: "https://example.net/"},
	}
}

func TestBuild_RoundTrip(t *testing.T) {
	entries := sampleEntries()

	blob, err := Build(entries)
	require.NoError(t, err)

	got, err := Read(blob)
	require.NoError(t, err)
	require.Len(t, got, len(entries))

	for i := range entries {
		assert.Equal(t, entries[i].Filename, got[i].Filename, "エントリの順序と名前が一致しません")
		assert.True(t, bytes.Equal(entries[i].Content, got[i].Content), "エントリ本文がバイト単位で一致しません: %s", entries[i].Filename)
	}
}

func TestBuild_FlatDeflateEntries(t *testing.T) {
	blob, err := Build(sampleEntries())
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	require.NoError(t, err)
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method)
		assert.NotContains(t, f.Name, "/")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	first, err := Build(sampleEntries())
	require.NoError(t, err)
	second, err := Build(sampleEntries())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		blob, err := Build(nil)
		assert.True(t, errors.Is(err, ErrEmpty))
		assert.Nil(t, blob)
	})

	t.Run("empty filename", func(t *testing.T) {
		_, err := Build([]types.NamedContent{{Filename: "", Content: []byte("x")}})
		assert.Error(t, err)
	})

	t.Run("duplicate filename", func(t *testing.T) {
		_, err := Build([]types.NamedContent{
			{Filename: "a.html", Content: []byte("1")},
			{Filename: "a.html", Content: []byte("2")},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a.html")
	})
}

func TestRead_Invalid(t *testing.T) {
	_, err := Read([]byte("not a zip"))
	assert.Error(t, err)
}
