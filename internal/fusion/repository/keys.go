package repository

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/openmosaic/fusion/internal/fusion/model"
)

const (
	partialObjectPrefix = "Partial:"
	haveTextKey         = "Parts:HaveText"
	haveImageKey        = "Parts:HaveImage"
	conflictKey         = "Parts:Conflict"
	quarantineKey       = "Parts:Quarantine"
)

func partialKey(id string) string {
	return partialObjectPrefix + id
}

func kindSetKey(kind model.Kind) string {
	if kind == model.KindText {
		return haveTextKey
	}
	return haveImageKey
}

// decodePartial rebuilds a partial record from the raw hash fields. Fields
// other than the two known kinds are ignored.
func decodePartial(fields map[string]string) (model.PartialRecord, error) {
	partial := make(model.PartialRecord, len(fields))
	for _, kind := range model.Kinds {
		raw, ok := fields[string(kind)]
		if !ok {
			continue
		}
		var part model.Part
		if err := json.Unmarshal([]byte(raw), &part); err != nil {
			return nil, errors.Wrapf(err, "corrupt %s part value", kind)
		}
		partial[kind] = part
	}
	return partial, nil
}

func encodePart(part model.Part) ([]byte, error) {
	data, err := json.Marshal(part)
	if err != nil {
		return nil, errors.Wrapf(err, "marshalling %s part", part.Kind)
	}
	return data, nil
}
