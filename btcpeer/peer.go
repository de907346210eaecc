// Package btcpeer adapts btcd's wire protocol client to implement
// chain.PeerClient, grounded on the teacher's btcnode package: the same
// peer.Config/OnHeaders/OnBlock/OnInv wiring, reworked from a synchronous
// request/response pull used to populate a local index into an
// asynchronous adapter that feeds chain.Chain as messages arrive.
package btcpeer

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/peer"
	"github.com/btcsuite/btcd/wire"

	"github.com/gobch/gobch/chain"
	"github.com/gobch/gobch"
)

// receiver is the subset of chain.Chain this package calls into; kept as
// an interface so tests can fake it without constructing a real Chain.
type receiver interface {
	AddPendingBlock(header *gobch.BlockHeader, block *gobch.Block) (bool, error)
	Process() error
	RequestStop()
}

// Peer is a single outbound connection to a BCH full node, implementing
// chain.PeerClient.
type Peer struct {
	*peer.Peer
	nodeID string
	tmout  time.Duration
	chain  receiver
}

var _ chain.PeerClient = (*Peer)(nil)

// Connect dials addr and performs the version/verack handshake, wiring
// its message callbacks to feed chain directly as headers and blocks
// arrive (spec.md §4.H: "replies arrive asynchronously").
func Connect(addr string, nodeID string, tmout time.Duration, c receiver, testNet bool) (*Peer, error) {
	params := &chaincfg.MainNetParams
	if testNet {
		params = &chaincfg.TestNet3Params
	}

	p := &Peer{nodeID: nodeID, tmout: tmout, chain: c}

	verackCh := make(chan bool, 1)
	peerCfg := &peer.Config{
		DisableRelayTx:   true,
		UserAgentName:    "gobch",
		UserAgentVersion: "0.1.0",
		ChainParams:      params,
		TrickleInterval:  10 * time.Second,
		Listeners: peer.MessageListeners{
			OnVerAck: func(*peer.Peer, *wire.MsgVerAck) { verackCh <- true },
			OnHeaders: func(_ *peer.Peer, msg *wire.MsgHeaders) {
				p.onHeaders(msg)
			},
			OnBlock: func(_ *peer.Peer, msg *wire.MsgBlock, _ []byte) {
				p.onBlock(msg)
			},
			OnInv: func(_ *peer.Peer, msg *wire.MsgInv) {
				p.onInv(msg)
			},
		},
	}

	pp, err := peer.NewOutboundPeer(peerCfg, addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("tcp", pp.Addr())
	if err != nil {
		return nil, err
	}
	pp.AssociateConnection(conn)

	select {
	case <-verackCh:
	case <-time.After(tmout):
		pp.Disconnect()
		return nil, fmt.Errorf("btcpeer: handshake timed out with %s", addr)
	}
	p.Peer = pp
	return p, nil
}

// RequestHeaders issues a getheaders message with locator, spec.md
// §4.H's header-sync primitive.
func (p *Peer) RequestHeaders(locator []gobch.Hash) error {
	bl := make(blockchain.BlockLocator, len(locator))
	for i, h := range locator {
		ch := chainhash.Hash(h)
		bl[i] = &ch
	}
	p.PushGetHeadersMsg(bl, &chainhash.Hash{})
	return nil
}

// RequestBlock issues a getdata for a full block body. nodeID is unused
// here (one Peer is one connection); it exists so multi-peer schedulers
// higher up (MarkBlocksForNode) can address a specific connection by id.
func (p *Peer) RequestBlock(hash gobch.Hash, nodeID string) error {
	gd := wire.NewMsgGetData()
	ch := chainhash.Hash(hash)
	if err := gd.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &ch)); err != nil {
		return err
	}
	p.QueueMessage(gd, nil)
	return nil
}

// AnnounceBlock relays a freshly-attached block's hash via inv, spec.md
// §4.H's "announce to peers".
func (p *Peer) AnnounceBlock(hash gobch.Hash) error {
	inv := wire.NewMsgInv()
	ch := chainhash.Hash(hash)
	if err := inv.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &ch)); err != nil {
		return err
	}
	p.QueueMessage(inv, nil)
	return nil
}

func (p *Peer) onHeaders(msg *wire.MsgHeaders) {
	for _, h := range msg.Headers {
		bh := headerFromWire(h)
		if _, err := p.chain.AddPendingBlock(bh, nil); err != nil {
			log.Printf("btcpeer: rejected header %s: %v", bh.Hash(), err)
		}
	}
}

func (p *Peer) onBlock(msg *wire.MsgBlock) {
	blk := blockFromWire(msg)
	if _, err := p.chain.AddPendingBlock(blk.BlockHeader, blk); err != nil {
		log.Printf("btcpeer: rejected block %s: %v", blk.Hash(), err)
		return
	}
	if err := p.chain.Process(); err != nil {
		log.Printf("btcpeer: Process() after block %s: %v", blk.Hash(), err)
	}
}

func (p *Peer) onInv(msg *wire.MsgInv) {
	for _, inv := range msg.InvList {
		if inv.Type == wire.InvTypeBlock {
			if err := p.RequestBlock(gobch.Hash(inv.Hash), p.nodeID); err != nil {
				log.Printf("btcpeer: RequestBlock(%s): %v", gobch.Hash(inv.Hash), err)
			}
		}
	}
}

func headerFromWire(h *wire.BlockHeader) *gobch.BlockHeader {
	return &gobch.BlockHeader{
		Version:    uint32(h.Version),
		PrevHash:   gobch.Hash(h.PrevBlock),
		MerkleRoot: gobch.Hash(h.MerkleRoot),
		Time:       uint32(h.Timestamp.Unix()),
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	}
}

func txFromWire(mtx *wire.MsgTx) *gobch.Tx {
	tx := &gobch.Tx{
		Version:  uint32(mtx.Version),
		TxIns:    make(gobch.TxInList, 0, len(mtx.TxIn)),
		TxOuts:   make(gobch.TxOutList, 0, len(mtx.TxOut)),
		LockTime: uint32(mtx.LockTime),
	}
	for _, in := range mtx.TxIn {
		tx.TxIns = append(tx.TxIns, &gobch.TxIn{
			PrevOut: gobch.OutPoint{
				Hash: gobch.Hash(in.PreviousOutPoint.Hash),
				N:    in.PreviousOutPoint.Index,
			},
			ScriptSig: in.SignatureScript,
			Sequence:  in.Sequence,
		})
	}
	for _, out := range mtx.TxOut {
		tx.TxOuts = append(tx.TxOuts, &gobch.TxOut{
			Amount:       out.Value,
			ScriptPubKey: out.PkScript,
		})
	}
	return tx
}

func blockFromWire(mb *wire.MsgBlock) *gobch.Block {
	blk := &gobch.Block{
		BlockHeader: headerFromWire(&mb.Header),
		Txs:         make(gobch.TxList, 0, len(mb.Transactions)),
	}
	for _, mtx := range mb.Transactions {
		blk.Txs = append(blk.Txs, txFromWire(mtx))
	}
	return blk
}

func (p *Peer) Close() error {
	p.Disconnect()
	return nil
}
