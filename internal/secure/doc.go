// Package secure keeps credential material sealed in memory.
//
// Subscription keys held by the credential store live in memguard enclaves:
// encrypted at rest (XSalsa20Poly1305) and opened into a locked buffer only
// for as long as it takes to copy the value onto an outgoing request.
//
//	m := secure.NewMaterial(key)
//	defer m.Destroy()
//
//	value, err := m.Reveal()
//
// Call memguard.Purge (via secure.Purge) at process exit to wipe any
// remaining enclaves.
//
// This does not protect against an attacker with access to the running
// process; the revealed string is ordinary Go memory once it is returned.
package secure
