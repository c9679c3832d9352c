package subsystem

import "sync"

var defaultsOnce sync.Once

// RegisterDefaults registers the appliance's stock subsystems. Safe to call
// more than once; both the parent and every child call it at startup so the
// dispatch keys resolve on either side of the process boundary.
func RegisterDefaults() {
	defaultsOnce.Do(func() {
		Register(GPIOTrigger{})
		Register(IRReceiver{})
		Register(ClapDetector{})
		Register(Accelerometer{})
		Register(WebGUI{})
		Register(SayGUI{})
	})
}
