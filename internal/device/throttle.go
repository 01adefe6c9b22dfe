package device

import (
	"context"

	"github.com/hupe1980/vdisk/internal/resource"
)

// Throttled charges every cluster transfer against a resource.Controller IO
// budget before delegating to the wrapped device.
type Throttled struct {
	Device
	ctx  context.Context
	ctrl *resource.Controller
}

// Throttle wraps dev. ctx bounds every wait on the limiter; a nil controller
// disables throttling.
func Throttle(ctx context.Context, dev Device, ctrl *resource.Controller) *Throttled {
	return &Throttled{Device: dev, ctx: ctx, ctrl: ctrl}
}

func (t *Throttled) ReadCluster(index int32) ([]byte, error) {
	if err := t.ctrl.AcquireIO(t.ctx, t.Geometry().ClusterSize); err != nil {
		return nil, err
	}
	return t.Device.ReadCluster(index)
}

func (t *Throttled) WriteCluster(index int32, data []byte) error {
	if err := t.ctrl.AcquireIO(t.ctx, len(data)); err != nil {
		return err
	}
	return t.Device.WriteCluster(index, data)
}
