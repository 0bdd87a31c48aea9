package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProduct_Variant(t *testing.T) {
	p := Product{
		ID:    "P1",
		Title: "Widget",
		Variants: []Variant{
			{ID: "V1", Title: "Small"},
			{ID: "V2", Title: "Large"},
		},
	}

	v, ok := p.Variant(1)
	assert.True(t, ok)
	assert.Equal(t, "V2", v.ID)

	_, ok = p.Variant(-1)
	assert.False(t, ok)

	_, ok = p.Variant(2)
	assert.False(t, ok)
}

func TestProduct_PrimaryImageURL(t *testing.T) {
	p := Product{Images: []Image{{URL: "first"}, {URL: "second"}}}
	assert.Equal(t, "first", p.PrimaryImageURL())

	assert.Equal(t, "", Product{}.PrimaryImageURL())
}
