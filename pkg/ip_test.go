package pkg

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPIsLocal(t *testing.T) {
	assert.True(t, IPIsLocal("127.0.0.1:5643"))
	assert.True(t, IPIsLocal("172.19.0.1:33454"))
	assert.False(t, IPIsLocal("85.214.132.117:443"))
}

func TestReadUserIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/athletes", nil)
	req.Header.Set("X-Real-Ip", "85.214.132.117")
	ip, err := ReadUserIP(req)
	require.NoError(t, err)
	assert.Equal(t, "85.214.132.117", ip)

	req = httptest.NewRequest("GET", "/athletes", nil)
	req.RemoteAddr = "127.0.0.1:5643"
	ip, err = ReadUserIP(req)
	require.NoError(t, err)
	assert.Equal(t, "localhost", ip)

	req = httptest.NewRequest("GET", "/athletes", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	_, err = ReadUserIP(req)
	require.Error(t, err)
}
