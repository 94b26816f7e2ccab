package domain

// OverrideIdentityHash replaces the memoized identity hash of n.
// This is exported for testing purposes only.
func OverrideIdentityHash(n Node, h Hash) {
	n.base().storeHash(h)
}
