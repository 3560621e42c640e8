package replink

import "pkt.systems/replink/core"

type sinkFanout struct {
	sinks []core.TerminalSink
}

func (f sinkFanout) OnOutputForDisplay(data []byte) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnOutputForDisplay(data)
	}
}

func (f sinkFanout) OnTitleChanged(text string, append bool) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTitleChanged(text, append)
	}
}
