package types

import "time"

// Origin identifies how a screenshot was discovered.
type Origin string

const (
	OriginClipboard Origin = "clipboard"
	OriginDirectory Origin = "directory"
)

// Candidate is a discovered screenshot waiting to be published. Exactly one of
// Data or Path is set. A candidate is consumed once.
type Candidate struct {
	Origin    Origin
	Data      []byte   // raw bitmap read from the clipboard
	DataType  DataType // representation Data was read as
	Path      string   // file observed in the watched directory
	CreatedAt time.Time
}

// Payload is what gets published: the persisted PNG and the bitmap bytes
// offered alongside it.
type Payload struct {
	Path      string
	Image     []byte
	ImageType DataType
}

// PublishedState records the engine's most recent clipboard write.
type PublishedState struct {
	Seq         uint64
	Token       int64
	Payload     Payload
	PublishedAt time.Time
}

// Stage is a step of a candidate's lifecycle.
type Stage string

const (
	StageDetected  Stage = "detected"
	StageConverted Stage = "converted"
	StageLocated   Stage = "located"
	StagePublished Stage = "published"
	StageVerifying Stage = "verifying"
	StageSettled   Stage = "settled"
	StageDropped   Stage = "dropped"
)

// Record is the persisted summary of the most recent screenshot.
type Record struct {
	Path        string    `json:"path"`
	Origin      Origin    `json:"origin"`
	Size        int64     `json:"size"`
	Token       int64     `json:"token"`
	DeviceID    string    `json:"device_id,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Republished int       `json:"republished"`
}

// EngineStatus is a point-in-time view of the orchestrator.
type EngineStatus struct {
	Active      bool      `json:"active"`
	Mode        string    `json:"mode"`
	Clipboard   string    `json:"clipboard"`
	Directory   string    `json:"directory"`
	Stage       Stage     `json:"stage,omitempty"`
	LastPath    string    `json:"last_path,omitempty"`
	LastToken   int64     `json:"last_token"`
	Published   int       `json:"published"`
	Republished int       `json:"republished"`
	Dropped     int       `json:"dropped"`
	LastError   string    `json:"last_error,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
}
