package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDisabledIsNop(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)
}

func TestNewS3StoreValidates(t *testing.T) {
	_, err := NewS3Store(Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.Error(t, err)
	_, err = NewS3Store(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)

	s, err := NewS3Store(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "abc/exports/filtered_segments.csv", ObjectKey(" abc ", "/exports/filtered_segments.csv"))
}
