package observe

import "github.com/vango-dev/cells/pkg/cell"

// multi fans every event out to several instrumentations in order.
type multi []cell.Instrumentation

// Multi combines instrumentations. Nil entries are skipped.
func Multi(insts ...cell.Instrumentation) cell.Instrumentation {
	var m multi
	for _, i := range insts {
		if i != nil {
			m = append(m, i)
		}
	}
	switch len(m) {
	case 0:
		return cell.NopInstrumentation{}
	case 1:
		return m[0]
	}
	return m
}

func (m multi) Notified(info cell.Info, listeners int) {
	for _, i := range m {
		i.Notified(info, listeners)
	}
}

func (m multi) ListenerFailed(info cell.Info, err error) {
	for _, i := range m {
		i.ListenerFailed(info, err)
	}
}

func (m multi) DemandChanged(info cell.Info, active bool) {
	for _, i := range m {
		i.DemandChanged(info, active)
	}
}

func (m multi) FetchStarted(info cell.Info) {
	for _, i := range m {
		i.FetchStarted(info)
	}
}

func (m multi) FetchSettled(info cell.Info, waiters int, err error) {
	for _, i := range m {
		i.FetchSettled(info, waiters, err)
	}
}
