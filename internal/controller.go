package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/awale-net/awale/internal/core"
	"github.com/awale-net/awale/internal/core/debug"
	"github.com/awale-net/awale/internal/discovery"
	"github.com/awale-net/awale/internal/gameserver"
	"github.com/awale-net/awale/internal/store"
)

// challengeSweepInterval is how often stale challenges are expired.
const challengeSweepInterval = 15 * time.Second

// Controller is the main entrypoint for the server. It's responsible for
// initializing any shared resources (such as database and logging), defining
// the servers, and launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	wg     sync.WaitGroup

	store      *store.Store
	responder  *discovery.Responder
	gameServer *gameserver.Server
	servers    []*frontend
}

func (c *Controller) Start(ctx context.Context) {
	defer c.Shutdown(ctx)

	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		fmt.Printf("error initializing logger: %v\n", err)
		return
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	c.store, err = store.Initialize(c.Config)
	if err != nil {
		c.logger.Errorf("error initializing database: %v", err)
		return
	}

	// The UDP responder makes this server findable before any TCP traffic
	// exists, so it launches ahead of the frontends.
	c.responder = &discovery.Responder{
		Logger:  c.logger,
		Tag:     c.Config.Discovery.ServerTag,
		TCPPort: c.Config.Discovery.NegotiationPort,
	}
	if err := c.responder.Start(ctx, c.Config.Discovery.BroadcastPort, &c.wg); err != nil {
		c.logger.Errorf("error starting discovery responder: %v", err)
		return
	}
	c.logger.Infof("answering discovery probes on UDP port %d, advertising %s:%d",
		c.responder.Port(), c.Config.AdvertisedIP(), c.Config.Discovery.NegotiationPort)

	// Configure and run all of our servers.
	c.declareServers()
	c.run(ctx)
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers() {
	c.gameServer = &gameserver.Server{
		Name:   "GAME",
		Config: c.Config,
		Logger: c.logger,
		Store:  c.store,
	}

	c.servers = []*frontend{
		{
			Address: c.buildAddress(c.Config.Discovery.NegotiationPort),
			Backend: c.gameServer,
		},
	}
}

func (c *Controller) run(ctx context.Context) {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			c.logger.Errorf("error starting %s server: %v", server.Backend.Identifier(), err)
			return
		}
	}

	// Expire stale challenges in the background for as long as we run.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(challengeSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.gameServer.SweepChallenges()
			}
		}
	}()

	c.wg.Wait()
}

func (c *Controller) buildAddress(port int) string {
	return fmt.Sprintf("%s:%v", c.Config.Hostname, port)
}

func (c *Controller) Shutdown(ctx context.Context) {
	// Close the database after all of the servers have stopped in order to
	// avoid errors from any persistence calls during the shutdown process.
	c.wg.Wait()
	if c.store != nil {
		c.store.Shutdown()
	}
}
