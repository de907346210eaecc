// Command gobchd runs a minimal Bitcoin Cash full node: it syncs
// headers and blocks from a single peer, validates them, and maintains
// the UTXO set and block-file store on disk, spec.md §1.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gobch/gobch/blockstore"
	"github.com/gobch/gobch/btcpeer"
	"github.com/gobch/gobch/chain"
	"github.com/gobch/gobch/chainparams"
	"github.com/gobch/gobch"
	"github.com/gobch/gobch/rlimit"
	"github.com/gobch/gobch/utxo"
)

func main() {
	dataDir := flag.String("datadir", "", "/path/to/data directory (required)")
	nodeAddr := flag.String("nodeaddr", "", "peer address to sync from, e.g. 127.0.0.1:8333")
	nodeTmout := flag.Int("nodetmout", 30, "peer connection timeout in seconds")
	testNet := flag.Bool("testnet", false, "use testnet3 parameters")
	openFiles := flag.Uint64("open-files", 65536*4, "open-files rlimit to request (the UTXO set can open up to 65,536 leveldb shards)")

	flag.Parse()

	if *dataDir == "" {
		log.Fatalf("-datadir is required")
	}
	if *nodeAddr == "" {
		log.Fatalf("-nodeaddr is required")
	}

	if err := rlimit.SetRLimit(*openFiles); err != nil {
		log.Printf("warning: could not raise open files rlimit: %v", err)
	}

	params := chainparams.MainNetParams
	if *testNet {
		params = chainparams.TestNetParams
	}

	blocks, err := blockstore.Open(filepath.Join(*dataDir, "blocks"))
	if err != nil {
		log.Fatalf("opening block store: %v", err)
	}
	utxos, err := utxo.Open(filepath.Join(*dataDir, "outputs"))
	if err != nil {
		log.Fatalf("opening utxo set: %v", err)
	}

	c, err := chain.New(params, blocks, utxos, nil)
	if err != nil {
		log.Fatalf("initializing chain: %v", err)
	}

	tmout := time.Duration(*nodeTmout) * time.Second
	log.Printf("connecting to %s...", *nodeAddr)
	p, err := btcpeer.Connect(*nodeAddr, *nodeAddr, tmout, c, *testNet)
	if err != nil {
		log.Fatalf("connecting to %s: %v", *nodeAddr, err)
	}
	defer p.Close()
	c.SetPeer(p)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Printf("interrupt received, stopping...")
		c.RequestStop()
		signal.Stop(sigCh)
	}()

	locator := c.GetReverseBlockHashes(10)
	if len(locator) == 0 {
		locator = []gobch.Hash{c.TipHash()}
	}
	if err := p.RequestHeaders(locator); err != nil {
		log.Printf("requesting headers: %v", err)
	}

	log.Printf("synced to height %d, running, ctrl-c to stop", c.TipHeight())
	select {}
}
