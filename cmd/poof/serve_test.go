package main

import (
	"testing"
	"time"

	"github.com/ohong/poof/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestProcessWriteTimeout(t *testing.T) {
	cfg := &config.Config{
		TransformTimeout:       120 * time.Second,
		DescriptionTimeout:     30 * time.Second,
		DescriptionConcurrency: 5,
	}
	// 10 references: one transform wave, two description waves.
	assert.Equal(t, 120*time.Second+60*time.Second+60*time.Second, processWriteTimeout(cfg))

	cfg.DescriptionConcurrency = 3
	assert.Equal(t, 120*time.Second+4*30*time.Second+60*time.Second, processWriteTimeout(cfg))

	cfg.DescriptionConcurrency = 0
	assert.Equal(t, 120*time.Second+2*30*time.Second+60*time.Second, processWriteTimeout(cfg))
}
