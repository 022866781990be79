package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldRecordDisplayValue(t *testing.T) {
	t.Run("prefers the highlighted passage", func(t *testing.T) {
		text := "marchers gathered at the courthouse"
		record := FieldRecord{Value: "protest-march", Text: &text}
		assert.Equal(t, text, record.DisplayValue())
	})

	t.Run("falls back to the coded value", func(t *testing.T) {
		record := FieldRecord{Value: "protest-march"}
		assert.Equal(t, "protest-march", record.DisplayValue())
	})

	t.Run("empty passage still wins", func(t *testing.T) {
		empty := ""
		record := FieldRecord{Value: "protest-march", Text: &empty}
		assert.Equal(t, "", record.DisplayValue())
	})
}
