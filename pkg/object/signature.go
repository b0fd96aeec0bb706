package object

// CommitSigningPayload returns the canonical bytes that are signed for
// a commit: its serialized form with the signature header stripped, so
// the signature never covers itself.
func CommitSigningPayload(c *CommitObj) []byte {
	unsigned := *c
	unsigned.Signature = ""
	return MarshalCommit(&unsigned)
}
