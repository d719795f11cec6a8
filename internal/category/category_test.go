package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	slug, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, All, slug)

	slug, err = Parse(" Food_Composting ")
	require.NoError(t, err)
	assert.Equal(t, FoodComposting, slug)

	_, err = Parse("gardening")
	assert.Error(t, err)
}

func TestQueryOmittedForAll(t *testing.T) {
	assert.Nil(t, All.Query())
	assert.Equal(t, "category=green_tech", GreenTech.Query().Encode())
}

func TestConcreteExcludesAll(t *testing.T) {
	assert.True(t, All.Valid())
	assert.False(t, All.Concrete())
	assert.True(t, CommunityEvents.Concrete())
	assert.False(t, Slug("").Valid())
}

func TestCategoriesIsACopy(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 6)
	cats[0].Label = "changed"
	assert.Equal(t, "Waste & Recycling", WasteRecycling.Label())
	assert.Equal(t, "All", All.Label())
}
