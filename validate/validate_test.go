package validate

import (
	"errors"
	"testing"

	"github.com/Seeker220/letswatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Query string `json:"q" validate:"required"`
	Page  int    `json:"page" validate:"gte=1,lte=500"`
}

func TestMap(t *testing.T) {
	fields := Map(sample{Page: 0})
	assert.Equal(t, "is required", fields["q"])
	assert.Equal(t, "must be >= 1", fields["page"])

	assert.Nil(t, Map(sample{Query: "dune", Page: 1}))
}

func TestStruct(t *testing.T) {
	err := Struct(sample{Query: "dune", Page: 501})

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "must be <= 500", verr.Fields["page"])

	assert.NoError(t, Struct(sample{Query: "dune", Page: 2}))
}
