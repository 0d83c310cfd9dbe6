package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	s := &BlobStore{bucket: "memora", baseURL: "http://127.0.0.1:9000"}

	assert.Equal(t, "abc.png", s.ObjectName("http://127.0.0.1:9000/memora/abc.png"))
	assert.Equal(t, "nested/key.pdf", s.ObjectName("http://127.0.0.1:9000/memora/nested/key.pdf"))

	// URLs from elsewhere are not ours to delete.
	assert.Equal(t, "", s.ObjectName("http://other-host/memora/abc.png"))
	assert.Equal(t, "", s.ObjectName("http://127.0.0.1:9000/other-bucket/abc.png"))
	assert.Equal(t, "", s.ObjectName(""))
}
