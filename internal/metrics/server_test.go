package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerServesMetrics(t *testing.T) {
	InvocationsTotal.WithLabelValues("0", "pass").Inc()

	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "xdpwalk_invocations_total"))
}

func TestServerListenError(t *testing.T) {
	s := NewServer("256.0.0.1:bad", "/metrics")
	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServerStopBeforeStart(t *testing.T) {
	s := NewServer(":0", "/m")
	assert.Equal(t, ":0", s.Addr())
	assert.NoError(t, s.Stop(context.Background()))
}
