package btcpeer

import (
	"log"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcd/peer"
)

// logWriter adapts btcd/peer's btclog backend to the standard log
// package, so peer-level connection logging lands in the same place as
// the rest of the daemon's logging.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Print(string(p[24:])) // strip btclog's own timestamp prefix
	return len(p), nil
}

func init() {
	peerLog := btclog.NewBackend(logWriter{}).Logger("PEER")
	peerLog.SetLevel(btclog.LevelInfo)
	peer.UseLogger(peerLog)
}
