package ria_test

import (
	"testing"

	"github.com/datalad-ria/ria-remote/internal/ria"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatasetIDRejectsNonUUID(t *testing.T) {
	_, err := ria.ParseDatasetID("not-a-uuid")
	require.Error(t, err)
}

func TestDatasetIDPrefixSplitsThreeAndRest(t *testing.T) {
	id, err := ria.ParseDatasetID("01234567-89ab-cdef-0123-456789abcdef")
	require.NoError(t, err)
	a, b := id.Prefix()
	assert.Equal(t, "012", a)
	assert.Equal(t, "34567-89ab-cdef-0123-456789abcdef", b)
}

func TestSanitizeKeyRejectsWhitespaceAndSlash(t *testing.T) {
	for _, bad := range []string{"", "has space", "has/slash", "has\ttab"} {
		_, err := ria.SanitizeKey(bad)
		assert.Error(t, err, "key %q should be rejected", bad)
	}
	ok, err := ria.SanitizeKey("MD5E-s8--7e55db001d319a94b0b713529a756623.txt")
	require.NoError(t, err)
	assert.Equal(t, "MD5E-s8--7e55db001d319a94b0b713529a756623.txt", ok)
}

func TestKeyPathIsDeterministicAndDirhashStable(t *testing.T) {
	id, err := ria.ParseDatasetID("01234567-89ab-cdef-0123-456789abcdef")
	require.NoError(t, err)
	layout := ria.NewLayout("/store", id)
	key := "MD5E-s8--7e55db001d319a94b0b713529a756623.txt"

	p1 := layout.KeyPath(key)
	p2 := layout.KeyPath(key)
	assert.Equal(t, p1, p2)
	assert.Contains(t, p1, "/store/012/34567-89ab-cdef-0123-456789abcdef/annex/objects/")
	assert.Contains(t, p1, key)
}

func TestDirhashLowerIsTwoTwoCharacterSlices(t *testing.T) {
	hA, hB := ria.DirhashLower("some-key")
	assert.Len(t, hA, 2)
	assert.Len(t, hB, 2)

	hA2, hB2 := ria.DirhashLower("some-key")
	assert.Equal(t, hA, hA2)
	assert.Equal(t, hB, hB2)
}
