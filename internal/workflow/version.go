package workflow

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
)

// MaxRevision is the highest in-generation revision a version can carry.
// Revisions saturate here so the tenths digit never rolls into the
// generation.
const MaxRevision = 9

// Version is a subject version. Generation counts completed approvals and
// Revision counts rejections and edits since the last approval. It is
// stored as a single float column (generation + revision/10).
type Version struct {
	Generation int
	Revision   int
}

// InitialVersion is the version every subject is created with.
var InitialVersion = Version{Generation: 1}

// NextGeneration drops the revision and moves to the next whole version.
func (v Version) NextGeneration() Version {
	return Version{Generation: v.Generation + 1}
}

// NextRevision adds one tenth, saturating at MaxRevision.
func (v Version) NextRevision() Version {
	rev := v.Revision + 1
	if rev > MaxRevision {
		rev = MaxRevision
	}
	return Version{Generation: v.Generation, Revision: rev}
}

// Saturated reports whether another revision would leave the number unchanged.
func (v Version) Saturated() bool {
	return v.Revision >= MaxRevision
}

// Float returns the decimal form, e.g. 1.2.
func (v Version) Float() float64 {
	return float64(v.Generation*10+v.Revision) / 10
}

func (v Version) String() string {
	return strconv.FormatFloat(v.Float(), 'f', -1, 64)
}

// VersionFromFloat converts a stored decimal version back to its parts.
func VersionFromFloat(f float64) Version {
	tenths := int(math.Round(f * 10))
	return Version{Generation: tenths / 10, Revision: tenths % 10}
}

// Value implements driver.Valuer.
func (v Version) Value() (driver.Value, error) {
	return v.Float(), nil
}

// Scan implements sql.Scanner.
func (v *Version) Scan(src interface{}) error {
	switch x := src.(type) {
	case nil:
		*v = Version{}
	case float64:
		*v = VersionFromFloat(x)
	case float32:
		*v = VersionFromFloat(float64(x))
	case int64:
		*v = Version{Generation: int(x)}
	case []byte:
		return v.scanString(string(x))
	case string:
		return v.scanString(x)
	default:
		return fmt.Errorf("workflow: cannot scan %T into Version", src)
	}
	return nil
}

func (v *Version) scanString(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("workflow: parse version %q: %w", s, err)
	}
	*v = VersionFromFloat(f)
	return nil
}

// GormDataType keeps the column numeric on every dialect.
func (Version) GormDataType() string {
	return "float"
}

// MarshalJSON renders the version as a JSON number.
func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON accepts the JSON number form.
func (v *Version) UnmarshalJSON(data []byte) error {
	return v.scanString(string(data))
}
