package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), writeTimeout(0))
	assert.Equal(t, time.Duration(0), writeTimeout(-time.Second))
	assert.Equal(t, 90*time.Second, writeTimeout(60*time.Second))
	assert.Equal(t, 330*time.Second, writeTimeout(300*time.Second))
}
