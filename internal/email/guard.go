package email

import (
	"context"

	retry "github.com/StirlingMarketingGroup/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// connectGuard makes concurrent Connect calls share one in-flight dial
// instead of opening duplicate sessions.
type connectGuard struct {
	group singleflight.Group
}

func (g *connectGuard) do(ctx context.Context, connect func() error) error {
	ch := g.group.DoChan("connect", func() (interface{}, error) {
		return nil, connect()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// dialWithRetry retries only the network dial. Authentication is never retried.
func dialWithRetry(logger *logrus.Logger, protocol, addr string, retries int, dial func() error) error {
	attempt := 0
	return retry.Retry(func() error {
		attempt++
		return dial()
	}, retries, func(err error) error {
		logger.WithError(err).WithFields(logrus.Fields{
			"protocol": protocol,
			"addr":     addr,
			"attempt":  attempt,
		}).Warn("Dial failed, retrying shortly")
		return nil
	}, func() error {
		logger.WithFields(logrus.Fields{"protocol": protocol, "addr": addr}).Debug("Retrying dial now")
		return nil
	})
}
