package registry

import (
	"io"

	"github.com/dukex/flowhost/pkg/activities/fault"
	"github.com/dukex/flowhost/pkg/activities/ifelse"
	"github.com/dukex/flowhost/pkg/activities/join"
	"github.com/dukex/flowhost/pkg/activities/log"
	"github.com/dukex/flowhost/pkg/activities/setvariable"
	"github.com/dukex/flowhost/pkg/activities/signal"
	switchactivity "github.com/dukex/flowhost/pkg/activities/switch"
	"github.com/dukex/flowhost/pkg/activities/writeline"
)

// RegisterDefaultActivities registers all built-in activity factories.
// WriteLine writes to out.
func (r *Registry) RegisterDefaultActivities(out io.Writer) {
	r.RegisterActivity(writeline.NewWriteLineFactory(out))
	r.RegisterActivity(log.NewLogFactory())
	r.RegisterActivity(setvariable.NewSetVariableFactory())
	r.RegisterActivity(ifelse.NewIfElseFactory())
	r.RegisterActivity(switchactivity.NewSwitchFactory())
	r.RegisterActivity(signal.NewSignalFactory())
	r.RegisterActivity(join.NewJoinFactory())
	r.RegisterActivity(fault.NewFaultFactory())
}
