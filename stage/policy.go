package stage

import (
	"context"
	"fmt"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/observability"
)

// Policy decides what happens to an item-local fault.
type Policy int

const (
	// PolicyDrop logs and records the fault and drops the item.
	PolicyDrop Policy = iota
	// PolicyAbort stops the run on the first item-local fault.
	PolicyAbort
)

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "drop"
}

// ParsePolicy parses "drop" or "abort". An empty string means drop.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "drop":
		return PolicyDrop, nil
	case "abort":
		return PolicyAbort, nil
	default:
		return PolicyDrop, errors.InvalidArgument("fault_policy", fmt.Sprintf("%q is not drop or abort", s))
	}
}

// Options carries what Apply and the sink driver need besides the stage.
// Zero Options drop faults, log through the global logger and record
// nothing.
type Options struct {
	Policy  Policy
	Log     *logger.Logger
	Metrics *observability.PipelineMetrics
	Report  *Report
}

func (o Options) log() *logger.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logger.GetGlobalLogger()
}

// Handle classifies err raised by stage for source. It returns nil when
// the item is to be dropped and the stream continues, and a non-nil error
// when the run must stop. Anything that is not a configuration or systemic
// AppError, and not a context error, is treated as item-local.
func (o Options) Handle(ctx context.Context, source, stage string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if app, ok := errors.AsAppError(err); ok && app.Kind() != errors.KindItem {
		return err
	}

	fault := errors.ItemFault(source, stage, err)
	if o.Policy == PolicyAbort {
		return errors.Systemic(fmt.Sprintf("run aborted at %s in stage %s", source, stage), fault)
	}

	fields := logger.ItemFields(source, stage)
	fields[logger.FieldCode] = string(fault.Code)
	fields[logger.FieldFault] = err.Error()
	o.log().Warn("item dropped", fields)
	o.Metrics.RecordFault(ctx, stage, string(fault.Code))
	o.Report.AddFault(fault.ToRecord())
	return nil
}
