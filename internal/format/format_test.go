package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestETA(t *testing.T) {
	assert.Equal(t, "0s", ETA(0))
	assert.Equal(t, "45s", ETA(45*time.Second))
	assert.Equal(t, "2m14s", ETA(2*time.Minute+14*time.Second))
	assert.Equal(t, "1h05m", ETA(time.Hour+5*time.Minute))
}

func TestTimeAgo(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "never", TimeAgo(time.Time{}))
	assert.Equal(t, "just now", TimeAgo(now.Add(-10*time.Second)))
	assert.Equal(t, "1 minute ago", TimeAgo(now.Add(-70*time.Second)))
	assert.Equal(t, "5 minutes ago", TimeAgo(now.Add(-5*time.Minute)))
	assert.Equal(t, "1 hour ago", TimeAgo(now.Add(-90*time.Minute)))
	assert.Equal(t, "2 days ago", TimeAgo(now.Add(-49*time.Hour)))
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "1.0 KB", Bytes(1024))
	assert.Equal(t, "1.5 MB", Bytes(1536*1024))
	assert.Equal(t, "2.0 GB", Bytes(2*1024*1024*1024))
}

func TestScore(t *testing.T) {
	assert.Equal(t, "0%", Score(0))
	assert.Equal(t, "85%", Score(0.851))
	assert.Equal(t, "100%", Score(1))
}

func TestAddLineNumbers(t *testing.T) {
	assert.Equal(t, "1: a\n2: b", AddLineNumbers("a\nb", 1))
	assert.Equal(t, "10: only", AddLineNumbers("only", 10))
	assert.Equal(t, "1: ", AddLineNumbers("", 0))
}
