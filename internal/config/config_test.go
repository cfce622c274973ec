package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("neasmart2mqtt")
	assert.NoError(err)
	assert.Equal("neasmart2mqtt", topic)

	topic, err = CheckMQTTTopic("NeaSmart_2")
	assert.NoError(err)
	assert.Equal("neasmart_2", topic, "topic is lowercased")
}

func TestCheckMQTTTopicFail(t *testing.T) {

	assert := assert.New(t)

	_, err := CheckMQTTTopic("nea/smart")
	assert.Error(err, "separator is rejected")

	_, err = CheckMQTTTopic("")
	assert.Error(err, "empty topic is rejected")

	_, err = CheckMQTTTopic("nea smart")
	assert.Error(err, "whitespace is rejected")
}
