package fleetAuth

import "time"

// ticker abstracts time.Ticker so tests can drive the cooldown.
type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{t: time.NewTicker(d)}
}

func (t timeTicker) Chan() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()                  { t.t.Stop() }

// startCooldownLocked resets the resend cooldown to its full length and
// starts a fresh ticker task, replacing any running one.
func (o *Orchestrator) startCooldownLocked() {
	o.stopCooldownLocked()

	o.cooldownSeconds = int(o.config.OTP.ResendCooldown / time.Second)
	if o.cooldownSeconds <= 0 {
		return
	}

	stop := make(chan struct{})
	o.cooldownStop = stop
	gen := o.cooldownGen
	t := o.newTicker(o.config.OTP.CooldownTick)

	o.cooldownWG.Add(1)
	go o.runCooldown(gen, t, stop)
}

// stopCooldownLocked cancels the running task and zeroes the counter.
// Ticks already in flight see a newer generation and do nothing.
func (o *Orchestrator) stopCooldownLocked() {
	if o.cooldownStop != nil {
		close(o.cooldownStop)
		o.cooldownStop = nil
	}
	o.cooldownGen++
	o.cooldownSeconds = 0
}

func (o *Orchestrator) runCooldown(gen uint64, t ticker, stop <-chan struct{}) {
	defer o.cooldownWG.Done()
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.Chan():
			if !o.tickCooldown(gen) {
				return
			}
		}
	}
}

// tickCooldown decrements the counter and reports whether the task should
// keep running.
func (o *Orchestrator) tickCooldown(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.cooldownGen {
		return false
	}
	if o.cooldownSeconds > 0 {
		o.cooldownSeconds--
		o.notifyLocked()
	}
	if o.cooldownSeconds > 0 {
		return true
	}
	o.cooldownStop = nil
	return false
}
