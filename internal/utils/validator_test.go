package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Username string  `json:"username" binding:"required,username"`
	Status   string  `json:"status" binding:"required,oneof=verified rejected"`
	Lat      float64 `json:"lat" binding:"omitempty,latitude"`
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	require.NoError(t, InitValidator())

	err := ValidateStruct(&sample{Username: "ab", Status: "maybe", Lat: 120})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username只能包含字母、数字和下划线")
	assert.Contains(t, err.Error(), "status必须是以下之一")
	assert.Contains(t, err.Error(), "lat不是有效的坐标")

	assert.NoError(t, ValidateStruct(&sample{Username: "grower_01", Status: "verified", Lat: 31.2}))
}
