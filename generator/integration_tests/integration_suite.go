package integration_tests

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/yaron8/netmon/generator/bootstrap"
	"github.com/yaron8/netmon/generator/config"
)

const (
	maxRetries = 30
	retryDelay = 100 * time.Millisecond
)

type IntegrationTestSuite struct {
	suite.Suite
	baseURL string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan error
}

// SetupSuite runs once before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	port, err := freePort()
	s.Require().NoError(err, "Failed to find a free port")

	cfg, err := config.NewConfig()
	s.Require().NoError(err)
	cfg.Port = port
	cfg.FeedInterval = 20 * time.Millisecond
	cfg.AttackEvery = 3
	s.baseURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	s.done = make(chan error, 1)
	go func() {
		s.done <- bootstrap.NewBootstrap(cfg).StartServer(s.ctx)
	}()

	// Wait for the generator to be healthy
	s.T().Log("Waiting for generator to be ready...")
	s.waitForService(s.baseURL + "/health")
}

// TearDownSuite runs once after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()

	select {
	case err := <-s.done:
		s.NoError(err, "Generator did not stop cleanly")
	case <-time.After(10 * time.Second):
		s.Fail("Generator did not stop")
	}
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
