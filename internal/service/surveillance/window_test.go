package surveillance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeWindowDefaults(t *testing.T) {
	due := date(2026, time.January, 15)

	start, end := ComputeWindow(due, nil, nil)

	assert.Equal(t, date(2026, time.January, 1), start)
	assert.Equal(t, date(2026, time.February, 12), end)
}

func TestComputeWindowOverrides(t *testing.T) {
	due := date(2026, time.January, 15)
	customStart := date(2026, time.January, 10)
	customEnd := date(2026, time.January, 20)

	start, end := ComputeWindow(due, &customStart, &customEnd)
	assert.Equal(t, customStart, start)
	assert.Equal(t, customEnd, end)

	// Partial override keeps the default for the other bound.
	start, end = ComputeWindow(due, &customStart, nil)
	assert.Equal(t, customStart, start)
	assert.Equal(t, date(2026, time.February, 12), end)
}
