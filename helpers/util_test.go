package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("15  мар", " ", 1)
	assert.NoError(t, err)
	assert.Equal(t, "мар", part)

	part, err = GetSplitPart("19:30", ":", 0)
	assert.NoError(t, err)
	assert.Equal(t, "19", part)

	_, err = GetSplitPart("19", ":", 1)
	assert.Error(t, err)
}

func TestFirstRunes(t *testing.T) {
	assert.Equal(t, "мар", FirstRunes("марта", 3))
	assert.Equal(t, "ма", FirstRunes("ма", 3))
	assert.Equal(t, "", FirstRunes("", 3))
}
