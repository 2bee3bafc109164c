package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/pichator/pichator/testing"
)

func TestWorkerReturnsInTestMode(t *testing.T) {
	assert.NotPanics(t, main)
}
