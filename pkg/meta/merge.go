package meta

// Inherit overlays child metadata onto parent metadata: the child's
// present fields win, absent fields fall back to the parent's. Used by
// nested step execution to extend a parent's declarations without
// restating them.
func Inherit(parent, child Meta) Meta {
	out := parent
	if child.HTTP != nil {
		out.HTTP = child.HTTP
	}
	if child.KV != nil {
		out.KV = child.KV
	}
	if child.DB != nil {
		out.DB = child.DB
	}
	if child.Queue != nil {
		out.Queue = child.Queue
	}
	if child.Time != nil {
		out.Time = child.Time
	}
	if child.Crypto != nil {
		out.Crypto = child.Crypto
	}
	if child.Log != nil {
		out.Log = child.Log
	}
	if child.FS != nil {
		out.FS = child.FS
	}
	if child.Lock != nil {
		out.Lock = child.Lock
	}
	if child.Socket != nil {
		out.Socket = child.Socket
	}
	if child.Retry != nil {
		out.Retry = child.Retry
	}
	if child.Timeout != nil {
		out.Timeout = child.Timeout
	}
	if child.Idempotency != nil {
		out.Idempotency = child.Idempotency
	}
	if child.Circuit != nil {
		out.Circuit = child.Circuit
	}
	return out
}
