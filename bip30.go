package gobch

// bip30ExceptionTxids are the two mainnet transactions (at heights 91842
// and 91880) whose txid collided with an earlier coinbase whose output
// was still unspent, before BIP-30 forbade duplicate txids outright. spec.md
// §4.C/§4.F: "BIP-30 exception is recognized by hard-coded pre-check."
var bip30ExceptionTxids = map[string]bool{
	"d5d27987d2a3dfc724e359870c6644b40e497bdc0589a033220fe15429d88599": true,
	"e3bf3d07d4b0375638d5f1db5255fe07ba2c4cb067cd81b84ee974b6585fb468": true,
}

// IsBIP30Exception reports whether txid is one of the two historical
// mainnet duplicate-coinbase-txid collisions that predate BIP-30's
// outright ban, and so must be allowed to overwrite the still-unspent
// earlier output rather than be rejected as a collision.
func IsBIP30Exception(txid Hash) bool {
	return bip30ExceptionTxids[txid.String()]
}
