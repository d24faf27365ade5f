package model

// Kind discriminates the two part types a record is assembled from.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Kinds lists every part kind a record needs before it is ready.
var Kinds = []Kind{KindText, KindImage}

func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Part is a single-kind contribution towards one record.
type Part struct {
	Kind      Kind      `json:"kind"`
	Vector    []float64 `json:"vector"`
	Partition string    `json:"partitionName"`
}

// Submission is one intake message: a part destined for a record id.
type Submission struct {
	RecordId  string    `json:"recordId"`
	Kind      Kind      `json:"kind"`
	Vector    []float64 `json:"vector"`
	Partition string    `json:"partitionName"`
}

func (s Submission) Part() Part {
	return Part{Kind: s.Kind, Vector: s.Vector, Partition: s.Partition}
}

// PartialRecord holds the parts received so far for one record id, keyed by kind.
type PartialRecord map[Kind]Part

// Complete reports whether both kinds are present.
func (p PartialRecord) Complete() bool {
	_, hasText := p[KindText]
	_, hasImage := p[KindImage]
	return hasText && hasImage
}

// Conflicted reports whether both parts are present but name different partitions.
func (p PartialRecord) Conflicted() bool {
	text, hasText := p[KindText]
	image, hasImage := p[KindImage]
	return hasText && hasImage && text.Partition != image.Partition
}

// CompletedRecord is the assembled form forwarded downstream. The partition
// travels on the enclosing chunk, not on each record.
type CompletedRecord struct {
	Id          string    `json:"recordId"`
	TextVector  []float64 `json:"textVector"`
	ImageVector []float64 `json:"imageVector"`
	Partition   string    `json:"-"`
}

// Assemble builds the completed record for id. It returns false if either part
// is missing or the parts disagree on partition, so callers can treat stale
// readiness signals as a skip rather than an error.
func (p PartialRecord) Assemble(id string) (CompletedRecord, bool) {
	text, hasText := p[KindText]
	image, hasImage := p[KindImage]
	if !hasText || !hasImage || text.Partition != image.Partition {
		return CompletedRecord{}, false
	}
	return CompletedRecord{
		Id:          id,
		TextVector:  text.Vector,
		ImageVector: image.Vector,
		Partition:   text.Partition,
	}, true
}
