package neasmart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCelsiusOf(t *testing.T) {

	assert := assert.New(t)

	c := CelsiusOf(842)
	if assert.NotNil(c) {
		assert.Equal(29.0, *c, "84.2F is 29.0C")
	}

	c = CelsiusOf(680)
	if assert.NotNil(c) {
		assert.Equal(20.0, *c, "68.0F is 20.0C")
	}

	c = CelsiusOf(320)
	if assert.NotNil(c) {
		assert.Equal(0.0, *c, "32.0F is 0.0C")
	}

	// rounding to one decimal
	c = CelsiusOf(704)
	if assert.NotNil(c) {
		assert.Equal(21.3, *c, "70.4F rounds to 21.3C")
	}
}

func TestCelsiusOfNoSensor(t *testing.T) {

	assert := assert.New(t)

	assert.Nil(CelsiusOf(NoSensor), "sentinel decodes to nil, not 3276.7F")
	assert.Nil(CelsiusOfPtr(nil), "absent field decodes to nil")
}

func TestRawOfRoundTrip(t *testing.T) {

	assert := assert.New(t)

	for _, celsius := range []float64{0.0, 18.0, 20.5, 21.5, 29.0, 32.0} {
		raw := RawOf(celsius)
		back := CelsiusOf(raw)
		if assert.NotNil(back) {
			assert.Equal(celsius, *back, "celsius survives the raw round trip")
		}
	}

	assert.Equal(707, RawOf(21.5), "21.5C is 70.7F")
	assert.Equal(680, RawOf(20.0), "20.0C is 68.0F")
}
