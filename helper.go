package blobvault

import (
	"sync/atomic"
	"time"
)

// StartOpsCounter launches a ticker that logs store/fetch operations per
// second until stop is closed.
func (v *Vault) StartOpsCounter(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				readOps := atomic.SwapUint64(&v.readCounter, 0)
				writeOps := atomic.SwapUint64(&v.writeCounter, 0)
				log.Infof("Vault operations per second: read=%d write=%d", readOps, writeOps)
			}
		}
	}()
}

// Counters returns the operation counts accumulated since the last ticker
// reset (or since Init if the ticker is not running).
func (v *Vault) Counters() (reads, writes uint64) {
	return atomic.LoadUint64(&v.readCounter), atomic.LoadUint64(&v.writeCounter)
}
