package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		host     string
		secure   bool
	}{
		{"localhost:9000", "localhost:9000", false},
		{"http://localhost:9000", "localhost:9000", false},
		{"https://s3.amazonaws.com/", "s3.amazonaws.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			host, secure := splitEndpoint(tt.endpoint)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.secure, secure)
		})
	}
}

func TestNewClient(t *testing.T) {
	for _, endpoint := range []string{"localhost:9000", "http://minio.local:9000", "https://s3.amazonaws.com"} {
		client, err := NewClient(Config{
			Endpoint:  endpoint,
			AccessKey: "testkey",
			SecretKey: "testsecret",
			Region:    "us-east-1",
		})
		require.NoError(t, err, endpoint)
		assert.NotNil(t, client)
	}
}

func TestNewTransport(t *testing.T) {
	tr := newTransport(5 * time.Second)
	assert.Equal(t, 5*time.Second, tr.TLSHandshakeTimeout)
	assert.Equal(t, 5*time.Second, tr.ResponseHeaderTimeout)
}
