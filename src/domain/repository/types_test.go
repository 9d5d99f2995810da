package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageNavigation(t *testing.T) {
	t.Parallel()

	tries := map[string]struct {
		page       Page
		number     int
		pages      int
		prevOffset *int
		nextOffset *int
	}{
		"first of one": {
			Page{Limit: 10, Offset: 0, Total: 3},
			1, 1, nil, nil,
		},
		"first of many": {
			Page{Limit: 10, Offset: 0, Total: 25},
			1, 3, nil, intPtr(10),
		},
		"middle": {
			Page{Limit: 10, Offset: 10, Total: 25},
			2, 3, intPtr(0), intPtr(20),
		},
		"last": {
			Page{Limit: 10, Offset: 20, Total: 25},
			3, 3, intPtr(10), nil,
		},
	}

	for name, try := range tries {
		try := try
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, try.number, try.page.Number())
			assert.Equal(t, try.pages, try.page.Pages())
			assert.Equal(t, try.prevOffset, try.page.PrevOffset())
			assert.Equal(t, try.nextOffset, try.page.NextOffset())
		})
	}
}

func TestPageMarshalJSON(t *testing.T) {
	t.Parallel()

	// given
	page := &Page{Limit: 10, Offset: 10, Total: 25}

	// when
	content, err := json.Marshal(page)

	// then
	assert.Nil(t, err)
	var fields map[string]*int
	assert.Nil(t, json.Unmarshal(content, &fields))
	assert.Equal(t, intPtr(10), fields["limit"])
	assert.Equal(t, intPtr(10), fields["offset"])
	assert.Equal(t, intPtr(25), fields["total"])
	assert.Equal(t, intPtr(2), fields["number"])
	assert.Equal(t, intPtr(3), fields["pages"])
	assert.Equal(t, intPtr(0), fields["prev_offset"])
	assert.Equal(t, intPtr(20), fields["next_offset"])
}

func intPtr(i int) *int {
	return &i
}
