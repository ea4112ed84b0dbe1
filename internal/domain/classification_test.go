package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	key, err := DeriveKey(Classification{Tipo: "tareas", Anio: "2024", Grado: "5to"})
	require.NoError(t, err)

	assert.Equal(t, "tareas/2024/5to", key.String())
	assert.Equal(t, "tareas/2024/5to/", key.Prefix())
	assert.Equal(t, "tareas_2024_5to", key.Tag())
	assert.False(t, key.IsZero())
}

func TestDeriveKeyTrimsWhitespace(t *testing.T) {
	key, err := DeriveKey(Classification{Tipo: " tareas ", Anio: "2024\n", Grado: "\t5to"})
	require.NoError(t, err)
	assert.Equal(t, "tareas/2024/5to", key.String())
}

func TestDeriveKeyRejectsInvalidFields(t *testing.T) {
	cases := map[string]Classification{
		"empty tipo":        {Anio: "2024", Grado: "5to"},
		"empty anio":        {Tipo: "tareas", Grado: "5to"},
		"empty grado":       {Tipo: "tareas", Anio: "2024"},
		"blank grado":       {Tipo: "tareas", Anio: "2024", Grado: "   "},
		"separator in tipo": {Tipo: "ta/reas", Anio: "2024", Grado: "5to"},
		"all empty":         {},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			key, err := DeriveKey(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidClassification))
			assert.Equal(t, CodeInvalidClassification, CodeOf(err))
			assert.True(t, key.IsZero())
		})
	}
}

func TestDeriveKeyIsDeterministicAndDistinct(t *testing.T) {
	triples := []Classification{
		{"tareas", "2024", "5to"},
		{"tareas", "2024", "6to"},
		{"tareas", "2025", "5to"},
		{"examenes", "2024", "5to"},
		{"tareas2024", "5", "to"},
		{"t", "areas2024", "5to"},
	}

	seen := map[string]Classification{}
	for _, c := range triples {
		first, err := DeriveKey(c)
		require.NoError(t, err)
		second, err := DeriveKey(c)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		if prev, ok := seen[first.String()]; ok {
			t.Fatalf("%v and %v collide on %q", prev, c, first.String())
		}
		seen[first.String()] = c
	}
}

func TestTagIsDistinctWhenFieldsContainSeparator(t *testing.T) {
	triples := []Classification{
		{"a_b", "c", "d"},
		{"a", "b_c", "d"},
		{"a", "b", "c_d"},
		{"a_", "b", "c"},
		{"a", "_b", "c"},
		{"a%5F", "b", "c"},
	}
	seen := map[string]Classification{}
	for _, c := range triples {
		key, err := DeriveKey(c)
		require.NoError(t, err)
		if prev, ok := seen[key.Tag()]; ok {
			t.Fatalf("%v and %v share tag %q", prev, c, key.Tag())
		}
		seen[key.Tag()] = c
	}

	key, err := DeriveKey(Classification{Tipo: "a_b", Anio: "c", Grado: "d"})
	require.NoError(t, err)
	assert.Equal(t, "a%5Fb_c_d", key.Tag())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeUploadFailed, CodeOf(fmt.Errorf("%w: quota", ErrUploadFailed)))
	assert.Equal(t, CodeAuthError, CodeOf(fmt.Errorf("%w: %w", ErrUploadFailed, ErrAuth)))
	assert.Equal(t, CodeAssetNotFound, CodeOf(fmt.Errorf("resolve: %w", ErrAssetNotFound)))
}

func TestDownloadName(t *testing.T) {
	cases := []struct {
		asset AssetDescriptor
		want  string
	}{
		{AssetDescriptor{AssetID: "tareas/2024/5to/abc123", Format: "pdf"}, "abc123.pdf"},
		{AssetDescriptor{AssetID: "tareas/2024/5to/abc123"}, "abc123"},
		{AssetDescriptor{AssetID: "tareas/2024/5to/notes.PDF", Format: "pdf"}, "notes.PDF"},
		{AssetDescriptor{AssetID: ""}, "download"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.asset.DownloadName())
	}
}
