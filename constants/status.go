package constants

// State is a stage of the ingestion pipeline for one submission.
type State string

// Stable values (these exact strings are logged and reported in outcomes).
const (
	StateReceived          State = "RECEIVED"
	StateFingerprinted     State = "FINGERPRINTED"
	StateDuplicate         State = "DUPLICATE"
	StateNovel             State = "NOVEL"
	StateExtracted         State = "EXTRACTED"
	StateRendered          State = "RENDERED"
	StateNotified          State = "NOTIFIED"
	StateRecorded          State = "RECORDED"
	StateNotifiedDuplicate State = "NOTIFIED_DUPLICATE"
	StatePrompted          State = "PROMPTED" // no media attached; prompt sent
	StateDone              State = "DONE"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone
}
