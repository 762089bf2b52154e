package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEvents(t *testing.T) {
	body := strings.Join([]string{
		"id: 4",
		"event: prices",
		`data: {"materials":[]}`,
		"",
		": ping",
		"",
		"event: notice",
		`data: {"notice":"All available materials have been added!"}`,
		"",
		"id: 5",
		"event: prices",
		`data: {"materials":[]}`,
		"",
	}, "\r\n")

	var stats loadStats
	err := countEvents(strings.NewReader(body), &stats)

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(2), stats.prices.Load())
	assert.Equal(t, int64(1), stats.notices.Load())
	assert.Equal(t, uint64(5), stats.lastID.Load())
}
