package integration_tests

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/yaron8/netmon/dashboard/bootstrap"
	"github.com/yaron8/netmon/dashboard/config"
	genconfig "github.com/yaron8/netmon/generator/config"
	genmetrics "github.com/yaron8/netmon/generator/metrics"
	genservice "github.com/yaron8/netmon/generator/service"
)

const (
	maxRetries = 50
	retryDelay = 100 * time.Millisecond
)

// IntegrationTestSuite runs the dashboard against an in-process generator
// feed and a miniredis instance.
type IntegrationTestSuite struct {
	suite.Suite
	baseURL   string
	feed      *httptest.Server
	redis     *miniredis.Miniredis
	dashboard *bootstrap.Bootstrap
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan error
}

// SetupSuite runs once before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	genCfg := &genconfig.Config{
		FeedInterval: 20 * time.Millisecond,
		AttackEvery:  5,
		Timestamp:    genconfig.TimestampRFC3339,
		Sim:          genconfig.SimConfig{Delay: 100 * time.Millisecond, Loss: 0.1},
	}
	generator := genmetrics.NewSampleGenerator(genCfg.Sim.Delay, genCfg.Sim.Loss, genCfg.TimestampLayout(), 1)
	s.feed = httptest.NewServer(genservice.NewAPIServer(genCfg, generator).Router())

	var err error
	s.redis, err = miniredis.Run()
	s.Require().NoError(err, "Failed to start miniredis")

	port, err := freePort()
	s.Require().NoError(err, "Failed to find a free port")

	cfg, err := config.NewConfig()
	s.Require().NoError(err)
	cfg.Port = port
	cfg.Feed.URL = "ws" + strings.TrimPrefix(s.feed.URL, "http") + "/ws"
	cfg.Refresh.Interval = 50 * time.Millisecond
	cfg.Redis.Enabled = true
	cfg.Redis.Host = s.redis.Host()
	cfg.Redis.Port, err = strconv.Atoi(s.redis.Port())
	s.Require().NoError(err)
	s.baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	s.dashboard, err = bootstrap.NewBootstrap(cfg)
	s.Require().NoError(err)

	s.done = make(chan error, 1)
	go func() {
		s.done <- s.dashboard.Start(s.ctx)
	}()

	s.T().Log("Waiting for dashboard to be ready...")
	s.waitForService(s.baseURL + "/health")
}

// TearDownSuite runs once after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()

	select {
	case err := <-s.done:
		s.NoError(err, "Dashboard did not stop cleanly")
	case <-time.After(15 * time.Second):
		s.Fail("Dashboard did not stop")
	}

	s.feed.Close()
	s.redis.Close()
}

// waitForService waits for a service to become available
func (s *IntegrationTestSuite) waitForService(url string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	for i := 0; i < maxRetries; i++ {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			s.T().Logf("Service at %s is ready", url)
			return
		}
		if resp != nil {
			resp.Body.Close()
		}

		time.Sleep(retryDelay)
	}

	s.Require().Fail(fmt.Sprintf("Service at %s did not become ready after %d attempts", url, maxRetries))
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
