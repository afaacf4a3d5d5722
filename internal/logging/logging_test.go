package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { _ = Configure("info", "text") })

	assert.NoError(t, Configure("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Logger.Formatter)

	assert.Error(t, Configure("loud", "text"))
	assert.EqualError(t, Configure("info", "xml"), `invalid log format "xml"`)
}
